package journal

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mdwlog "github.com/msto63/guardian/foundation/core/log"
	"github.com/msto63/guardian/pkg/constraint"
	"github.com/msto63/guardian/pkg/constraint/checks"
	"github.com/msto63/guardian/pkg/metadata"
	"github.com/msto63/guardian/pkg/validator"
)

type order struct {
	Number string
	Qty    int
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	mem, err := NewSQLiteStore(SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	file, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "nested", "journal.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		mem.Close()
		file.Close()
	})
	return map[string]Store{
		"sqlite-memory": mem,
		"sqlite-file":   file,
		"memory":        NewMemoryStore(),
	}
}

func sampleViolations() []*constraint.Violation {
	ctx := constraint.Context{Kind: constraint.ContextField, Type: reflect.TypeOf(order{}), Name: "Qty"}
	return []*constraint.Violation{
		{
			CheckName:        "Min",
			ErrorCode:        "guardian.Min",
			Message:          "order.Qty must be greater than or equal to 1",
			MessageVariables: map[string]string{"min": "1"},
			Severity:         2,
			Context:          ctx,
			ContextPath:      []constraint.Context{constraint.ClassContext(reflect.TypeOf(order{})), ctx},
			InvalidValue:     0,
			CorrelationID:    "c-1",
		},
		{
			CheckName:     "NotBlank",
			ErrorCode:     "guardian.NotBlank",
			Message:       "order.Number cannot be blank",
			Context:       ctx,
			CorrelationID: "c-1",
		},
	}
}

func TestStore_RecordAndQuery(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			entries := EntriesFromViolations("cli", &order{}, sampleViolations())
			entries = append(entries, &Entry{Source: "cli"})

			accepted, rejected, err := store.RecordBatch(ctx, entries)
			require.NoError(t, err)
			assert.Equal(t, 2, accepted)
			assert.Equal(t, 1, rejected, "entries without a check are rejected")

			require.NoError(t, store.Record(ctx, &Entry{Source: "grpc", RootType: "invoice", Check: "Assert", Path: "invoice", ErrorCode: "x", Message: "m"}))

			all, err := store.Query(ctx, Filter{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			for _, e := range all {
				assert.NotEmpty(t, e.ID)
				assert.False(t, e.Timestamp.IsZero())
			}

			mins, err := store.Query(ctx, Filter{Check: "Min"})
			require.NoError(t, err)
			require.Len(t, mins, 1)
			assert.Equal(t, "order", mins[0].RootType)
			assert.Equal(t, "order > order.Qty", mins[0].Path)
			assert.Equal(t, "0", mins[0].InvalidValue)
			assert.Equal(t, map[string]string{"min": "1"}, mins[0].Variables)
			assert.Equal(t, 2, mins[0].Severity)

			byCorrelation, err := store.Query(ctx, Filter{CorrelationID: "c-1", Source: "cli"})
			require.NoError(t, err)
			assert.Len(t, byCorrelation, 2)

			page, err := store.Query(ctx, Filter{Limit: 1, Offset: 1})
			require.NoError(t, err)
			assert.Len(t, page, 1)

			stats, err := store.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(3), stats.Total)
			assert.Equal(t, int64(1), stats.ByCheck["NotBlank"])
			assert.Equal(t, int64(2), stats.ByRootType["order"])
		})
	}
}

func TestStore_Prune(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			old := &Entry{Timestamp: time.Now().UTC().Add(-48 * time.Hour), Source: "cli", RootType: "order", Check: "Min", ErrorCode: "e", Message: "m", Path: "p"}
			fresh := &Entry{Source: "cli", RootType: "order", Check: "Max", ErrorCode: "e", Message: "m", Path: "p"}
			require.NoError(t, store.Record(ctx, old))
			require.NoError(t, store.Record(ctx, fresh))

			deleted, err := store.Prune(ctx, 24*time.Hour)
			require.NoError(t, err)
			assert.Equal(t, int64(1), deleted)

			left, err := store.Query(ctx, Filter{})
			require.NoError(t, err)
			require.Len(t, left, 1)
			assert.Equal(t, "Max", left[0].Check)
		})
	}
}

func TestRecorder_Observer(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, "test", mdwlog.Discard())

	index := metadata.New(metadata.Options{Logger: mdwlog.Discard()})
	require.NoError(t, index.AddFieldChecks(reflect.TypeOf(order{}), "Qty", checks.NewMin(1)))
	v := validator.New(validator.Options{Index: index, Logger: mdwlog.Discard(), Observers: []validator.Observer{rec}})

	_, err := v.Validate(&order{Number: "A-1", Qty: 1})
	require.NoError(t, err)
	violations, err := v.Validate(&order{Number: "A-2", Qty: 0})
	require.NoError(t, err)
	require.Len(t, violations, 1)

	entries, err := store.Query(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "test", entries[0].Source)
	assert.Equal(t, "order", entries[0].RootType)
	assert.Equal(t, violations[0].CorrelationID, entries[0].CorrelationID)

	cve := constraint.NewConstraintsViolatedError(sampleViolations(), nil)
	require.NoError(t, rec.OnConstraintsViolated(context.Background(), cve))
	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
}
