package guard

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	mdwlog "github.com/msto63/guardian/foundation/core/log"
	"github.com/msto63/guardian/pkg/constraint"
	"github.com/msto63/guardian/pkg/constraint/checks"
	"github.com/msto63/guardian/pkg/metadata"
	"github.com/msto63/guardian/pkg/validator"
)

type owned interface {
	OwnerName() string
}

type account struct {
	Owner   string
	Balance int

	guard *Guard
	fee   int
	calls int
}

func (a *account) OwnerName() string { return a.Owner }

func (a *account) Withdraw(ctx context.Context, amount int) (int, error) {
	return Call(ctx, a.guard, a, withdraw, []interface{}{amount}, func(context.Context) (int, error) {
		a.calls++
		a.Balance -= amount + a.fee
		return a.Balance, nil
	})
}

func (a *account) Deposit(ctx context.Context, amount int) error {
	_, err := a.guard.Invoke(ctx, a, deposit, []interface{}{amount}, func(context.Context) (interface{}, error) {
		a.calls++
		a.Balance += amount
		return nil, nil
	})
	return err
}

func newAccount(owner string, balance int) *account {
	return &account{Owner: owner, Balance: balance}
}

type counter struct {
	n     int
	guard *Guard
	calls int
}

func (c *counter) Value(ctx context.Context) (int, error) {
	return Call(ctx, c.guard, c, counterValue, nil, func(context.Context) (int, error) {
		c.calls++
		return c.n, nil
	})
}

var (
	accountType  = reflect.TypeOf(account{})
	withdraw     = metadata.MethodOf[account]("Withdraw")
	deposit      = metadata.MethodOf[account]("Deposit")
	audit        = metadata.NewMethod(accountType, "audit", 0, metadata.KindMethod)
	newAcct      = metadata.ConstructorOf[account](newAccount)
	counterValue = metadata.MethodOf[counter]("Value")
)

func newGuard(t *testing.T) *Guard {
	t.Helper()
	names := metadata.NewStaticParameterNames()
	names.Register(withdraw, "amount")
	names.Register(deposit, "amount")
	names.Register(newAcct, "owner", "balance")
	index := metadata.New(metadata.Options{ParameterNames: names, Logger: mdwlog.Discard()})
	g := New(Options{Options: validator.Options{Index: index, Logger: mdwlog.Discard()}})

	require.NoError(t, index.SetGuarded(accountType, true))
	require.NoError(t, index.AddFieldChecks(accountType, "Balance", checks.NewMin(0)))
	require.NoError(t, index.AddMethodParameterChecks(withdraw, 0, checks.NewMin(1)))
	require.NoError(t, index.AddMethodPreChecks(withdraw, constraint.NewPreCheck("amount <= _this.Balance")))
	post := constraint.NewPostCheck("_returns = _old - amount")
	post.SetOld("_this.Balance")
	require.NoError(t, index.AddMethodPostChecks(withdraw, post))
	require.NoError(t, index.AddMethodReturnChecks(withdraw, false, checks.NewMin(0)))
	require.NoError(t, index.AddConstructorParameterChecks(newAcct, 0, checks.NewNotBlank()))
	return g
}

func (g *Guard) account(balance int) *account {
	return &account{Owner: "ann", Balance: balance, guard: g}
}

func violationsOf(t *testing.T, err error) []*constraint.Violation {
	t.Helper()
	var cve *constraint.ConstraintsViolatedError
	require.True(t, errors.As(err, &cve), "expected violations, got %v", err)
	return cve.Violations
}

func TestGuard_PassingCall(t *testing.T) {
	g := newGuard(t)
	a := g.account(100)

	balance, err := a.Withdraw(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 70, balance)
	assert.Equal(t, 1, a.calls)
}

func TestGuard_PreconditionBlocksBody(t *testing.T) {
	tests := []struct {
		name   string
		amount int
		check  string
		path   string
	}{
		{"parameter check", 0, "Min", "account.Withdraw(amount)"},
		{"pre condition", 500, "Pre", "account.Withdraw() entry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGuard(t)
			a := g.account(100)

			balance, err := a.Withdraw(context.Background(), tt.amount)
			require.Error(t, err)
			assert.Zero(t, balance)
			assert.Equal(t, 0, a.calls)
			assert.Equal(t, 100, a.Balance)
			assert.True(t, mdwerror.HasCode(err, mdwerror.CodeConstraintsViolated))

			violations := violationsOf(t, err)
			require.Len(t, violations, 1)
			assert.Equal(t, tt.check, violations[0].CheckName)
			assert.Equal(t, tt.path, violations[0].PathString())
			assert.Same(t, a, violations[0].ValidatedObject)
		})
	}
}

func TestGuard_PostconditionAfterBody(t *testing.T) {
	g := newGuard(t)
	a := g.account(100)
	a.fee = 1

	_, err := a.Withdraw(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 89, a.Balance)

	violations := violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "Post", violations[0].CheckName)
	assert.Equal(t, 89, violations[0].InvalidValue)
}

func TestGuard_ReturnValueCheck(t *testing.T) {
	g := newGuard(t)
	a := g.account(10)
	a.fee = 5

	// post invariants fail first and the remaining post checks are skipped
	_, err := a.Withdraw(context.Background(), 10)
	violations := violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "Balance", violations[0].Context.Name)

	g.SetInvariantsEnabled(false)
	b := g.account(10)
	b.fee = 5
	_, err = b.Withdraw(context.Background(), 10)
	violations = violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "Min", violations[0].CheckName)
	assert.Equal(t, constraint.ContextMethodReturnValue, violations[0].Context.Kind)
	assert.Equal(t, "account.Withdraw()", violations[0].PathString())
}

func TestGuard_Invariants(t *testing.T) {
	g := newGuard(t)
	a := g.account(-5)
	ctx := context.Background()

	err := a.Deposit(ctx, 10)
	violations := violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "account > account.Balance", violations[0].PathString())
	assert.Equal(t, 0, a.calls)

	// private methods skip invariants
	_, err = g.Invoke(ctx, a, audit, nil, func(context.Context) (interface{}, error) { return "ok", nil })
	require.NoError(t, err)

	g.SetInvariantsEnabledFor(accountType, false)
	require.NoError(t, a.Deposit(ctx, 10))
	assert.Equal(t, 5, a.Balance)
	g.ClearOverrides(accountType)

	a.Balance = -1
	g.SetInvariantsEnabled(false)
	require.NoError(t, a.Deposit(ctx, 0))
	g.SetInvariantsEnabled(true)
	assert.Error(t, a.Deposit(ctx, 0))
}

func TestGuard_Toggles(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		toggle func(g *Guard)
	}{
		{"deactivated", func(g *Guard) { g.SetActivated(false) }},
		{"deactivated for type", func(g *Guard) { g.SetActivatedFor(accountType, false) }},
		{"pre conditions off", func(g *Guard) { g.SetPreConditionsEnabled(false) }},
		{"pre conditions off for type", func(g *Guard) { g.SetPreConditionsEnabledFor(accountType, false) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGuard(t)
			a := g.account(100)
			tt.toggle(g)

			_, err := a.Withdraw(ctx, 0)
			require.NoError(t, err)
			assert.Equal(t, 1, a.calls)

			g.SetActivated(true)
			g.SetPreConditionsEnabled(true)
			g.ClearOverrides(accountType)
			_, err = a.Withdraw(ctx, 0)
			assert.Error(t, err)
		})
	}

	t.Run("post conditions off", func(t *testing.T) {
		g := newGuard(t)
		a := g.account(100)
		a.fee = 1
		g.SetPostConditionsEnabled(false)
		assert.False(t, g.IsPostConditionsEnabledFor(accountType))

		_, err := a.Withdraw(ctx, 10)
		require.NoError(t, err)
		g.SetPostConditionsEnabledFor(accountType, true)
		_, err = a.Withdraw(ctx, 10)
		assert.Error(t, err)
	})
}

func TestGuard_UnguardedTypePassesThrough(t *testing.T) {
	g := newGuard(t)
	c := &counter{n: -1, guard: g}
	v, err := c.Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, v)
}

func TestGuard_ReentrantReturnCheck(t *testing.T) {
	g := newGuard(t)
	counterType := reflect.TypeOf(counter{})
	require.NoError(t, g.Index().SetGuarded(counterType, true))
	require.NoError(t, g.Index().AddMethodReturnChecks(counterValue, false, checks.NewAssert("_this.Value > 0")))

	c := &counter{n: 3, guard: g}
	v, err := c.Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	// once for the call, once for the expression reading the value
	assert.Equal(t, 2, c.calls)

	c.n = 0
	_, err = c.Value(context.Background())
	violations := violationsOf(t, err)
	assert.Len(t, violations, 1)
}

func TestGuard_ListenerOrder(t *testing.T) {
	g := newGuard(t)
	a := g.account(100)

	var order []string
	record := func(name string) Listener {
		return NewListenerFunc(func(_ context.Context, err *constraint.ConstraintsViolatedError) error {
			order = append(order, name)
			return nil
		})
	}
	global := record("global")
	object := record("object")
	typed := record("type")
	iface := record("interface")
	panicking := NewListenerFunc(func(context.Context, *constraint.ConstraintsViolatedError) error { panic("boom") })
	failing := NewListenerFunc(func(context.Context, *constraint.ConstraintsViolatedError) error {
		return errors.New("listener down")
	})

	for _, l := range []Listener{panicking, global, failing} {
		added, err := g.AddListener(l)
		require.NoError(t, err)
		assert.True(t, added)
	}
	added, err := g.AddListener(global)
	require.NoError(t, err)
	assert.False(t, added)

	_, err = g.AddObjectListener(a, object)
	require.NoError(t, err)
	_, err = g.AddObjectListener(a, global)
	require.NoError(t, err)
	_, err = g.AddTypeListener(accountType, typed)
	require.NoError(t, err)
	_, err = g.AddTypeListener(reflect.TypeOf((*owned)(nil)).Elem(), iface)
	require.NoError(t, err)

	_, err = a.Withdraw(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, []string{"object", "global", "type", "interface"}, order)

	order = nil
	assert.True(t, g.RemoveObjectListener(a, object))
	assert.True(t, g.RemoveObjectListener(a, global))
	assert.True(t, g.RemoveTypeListener(accountType, typed))
	assert.False(t, g.HasObjectListener(a, object))
	assert.True(t, g.HasListener(global))

	_, err = a.Withdraw(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, []string{"interface", "global"}, order)
}

type sliceListener struct{ seen []string }

func (l sliceListener) OnConstraintsViolated(context.Context, *constraint.ConstraintsViolatedError) error {
	return nil
}

func TestGuard_ListenerArguments(t *testing.T) {
	g := newGuard(t)

	_, err := g.AddListener(nil)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidArgument))
	_, err = g.AddListener(sliceListener{})
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidArgument))
	_, err = g.AddObjectListener(nil, NewListenerFunc(nil))
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidArgument))
	_, err = g.AddTypeListener(nil, NewListenerFunc(nil))
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidArgument))
}

func TestGuard_ProbeMode(t *testing.T) {
	g := newGuard(t)
	a := g.account(100)

	var notified int
	_, err := g.AddListener(NewListenerFunc(func(context.Context, *constraint.ConstraintsViolatedError) error {
		notified++
		return nil
	}))
	require.NoError(t, err)

	ctx, session := WithSession(context.Background())
	require.NoError(t, session.EnableProbeMode(a))
	assert.True(t, session.IsInProbeMode(a))
	assert.Error(t, session.EnableProbeMode(a))

	balance, err := a.Withdraw(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, balance)
	balance, err = a.Withdraw(ctx, 20)
	require.NoError(t, err)
	assert.Zero(t, balance)
	assert.Equal(t, 0, a.calls)
	assert.Equal(t, 1, notified)

	pml, err := session.DisableProbeMode(a)
	require.NoError(t, err)
	assert.Same(t, a, pml.Target())
	require.Len(t, pml.Calls(), 2)
	assert.Equal(t, []interface{}{20}, pml.ArgsOf("Withdraw"))
	require.Len(t, pml.Violations(), 1)
	assert.Equal(t, "Min", pml.Violations()[0].Violations[0].CheckName)

	_, err = a.Withdraw(ctx, 0)
	assert.Error(t, err)
	assert.Equal(t, 2, notified)

	_, err = session.DisableProbeMode(a)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidSequence))
}

func TestGuard_PhaseSequence(t *testing.T) {
	g := newGuard(t)
	a := g.account(100)
	ctx := context.Background()

	err := g.GuardMethodPost(ctx, nil, nil)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidSequence))

	pre, err := g.GuardMethodPre(ctx, a, withdraw, []interface{}{10})
	require.NoError(t, err)
	require.NotNil(t, pre)
	assert.Equal(t, PhaseChecked, pre.Phase())
	assert.NotNil(t, SessionFrom(pre.Context()))

	a.Balance -= 10
	require.NoError(t, g.GuardMethodPost(ctx, a.Balance, pre))
	assert.Equal(t, PhaseCompleted, pre.Phase())

	err = g.GuardMethodPost(ctx, a.Balance, pre)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidSequence))

	aborted, err := g.GuardMethodPre(ctx, a, withdraw, []interface{}{10})
	require.NoError(t, err)
	aborted.Abort()
	assert.Equal(t, PhaseAborted, aborted.Phase())
	err = g.GuardMethodPost(ctx, 0, aborted)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidSequence))
}

func TestGuard_CallArguments(t *testing.T) {
	g := newGuard(t)
	ctx := context.Background()

	_, err := g.GuardMethodPre(ctx, nil, withdraw, []interface{}{1})
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidArgument))
	_, err = g.GuardMethodPre(ctx, g.account(1), withdraw, nil)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidArgument))
	_, err = g.GuardMethodPre(ctx, g.account(1), metadata.MethodOf[account]("Close"), nil)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidArgument))
	_, err = g.GuardMethodPre(ctx, nil, newAcct, []interface{}{"a", 1})
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidArgument))
}

func TestGuard_BodyErrorSkipsPost(t *testing.T) {
	g := newGuard(t)
	a := g.account(100)
	boom := errors.New("ledger offline")

	_, err := Call(context.Background(), g, a, withdraw, []interface{}{10}, func(context.Context) (int, error) {
		return -1, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestGuard_Constructor(t *testing.T) {
	g := newGuard(t)
	ctx := context.Background()
	build := func(owner string, balance int) (*account, error) {
		return Construct(ctx, g, newAcct, []interface{}{owner, balance}, func(context.Context) (*account, error) {
			return newAccount(owner, balance), nil
		})
	}

	a, err := build("ann", 10)
	require.NoError(t, err)
	assert.Equal(t, "ann", a.Owner)

	_, err = build(" ", 10)
	violations := violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "account.newAccount(owner)", violations[0].PathString())

	_, err = build("ann", -1)
	violations = violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "Balance", violations[0].Context.Name)

	obj, err := g.GuardConstructor(ctx, newAcct, []interface{}{"bob", 1}, func(context.Context) (interface{}, error) {
		return newAccount("bob", 1), nil
	})
	require.NoError(t, err)
	assert.IsType(t, &account{}, obj)
}

func TestGuard_ConcurrentCalls(t *testing.T) {
	g := newGuard(t)
	shared := g.account(1 << 20)

	var wg sync.WaitGroup
	errs := make([]int, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			own := g.account(100)
			for n := 0; n < 20; n++ {
				if _, err := shared.Withdraw(context.Background(), 0); err == nil {
					errs[i]++
				}
				if err := own.Deposit(context.Background(), 1); err != nil {
					errs[i]++
				}
			}
		}(i)
	}
	wg.Wait()
	for _, n := range errs {
		assert.Zero(t, n)
	}
}
