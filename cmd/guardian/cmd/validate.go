package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	mdwlog "github.com/msto63/guardian/foundation/core/log"
	"github.com/msto63/guardian/internal/journal"
	"github.com/msto63/guardian/internal/metrics"
	"github.com/msto63/guardian/internal/notify"
	"github.com/msto63/guardian/internal/records"
	"github.com/msto63/guardian/pkg/configurer"
	"github.com/msto63/guardian/pkg/constraint"
	"github.com/msto63/guardian/pkg/guard"
	"github.com/msto63/guardian/pkg/settings"
)

type validateOptions struct {
	rules       string
	typeName    string
	profiles    []string
	asJSON      bool
	journal     bool
	notify      bool
	metricsFile string
}

func newValidateCommand(global *globalOptions) *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate [flags] FILE...",
		Short: "Validate YAML or JSON records against a rule file",
		Long: `Validate decodes every record of the given files and checks it against
the declarations of one type of the rule file.

A file may hold a single object, a list of objects or, for YAML, several
documents. The exit code is 1 when any record violates its rules.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := global.loadSettings(cmd)
			if err != nil {
				return err
			}
			return runValidate(cmd, s, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.rules, "rules", "r", "", "rule file (YAML, TOML or JSON)")
	cmd.Flags().StringVarP(&opts.typeName, "type", "t", "", "type of the rule file to validate against (default: the only type)")
	cmd.Flags().StringSliceVarP(&opts.profiles, "profile", "p", nil, "profiles to evaluate (default: configured profiles)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&opts.journal, "journal", false, "record violations in the journal")
	cmd.Flags().BoolVar(&opts.notify, "notify", false, "publish violations to NATS")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-textfile", "", "write Prometheus metrics to this file")
	_ = cmd.MarkFlagRequired("rules")
	return cmd
}

// violationView is the report form of a violation
type violationView struct {
	Field        string `json:"field"`
	Path         string `json:"path"`
	Check        string `json:"check"`
	ErrorCode    string `json:"errorCode"`
	Message      string `json:"message"`
	Severity     int    `json:"severity"`
	InvalidValue string `json:"invalidValue,omitempty"`
}

type recordResult struct {
	File       string          `json:"file"`
	Index      int             `json:"index"`
	Valid      bool            `json:"valid"`
	Violations []violationView `json:"violations,omitempty"`
}

type validationReport struct {
	Type       string         `json:"type"`
	Records    int            `json:"records"`
	Invalid    int            `json:"invalid"`
	Violations int            `json:"violations"`
	Results    []recordResult `json:"results"`
}

func runValidate(cmd *cobra.Command, s *settings.Settings, opts *validateOptions, files []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := s.Logger()
	if err != nil {
		return err
	}

	typeRules, err := selectType(opts.rules, opts.typeName)
	if err != nil {
		return err
	}
	c := configurer.New(configurer.Options{Logger: logger.WithField("component", "configurer")})
	if err := c.RegisterType(typeRules.Type, records.Type); err != nil {
		return err
	}
	if err := c.Add(&configurer.RuleSet{Types: []configurer.TypeRules{typeRules}}); err != nil {
		return err
	}

	g, err := s.NewGuard(c)
	if err != nil {
		return err
	}
	reg, cleanup, err := attachObservers(ctx, g, s, opts, logger)
	defer cleanup()
	if err != nil {
		return err
	}

	report := &validationReport{Type: typeRules.Type}
	for _, file := range files {
		recs, err := records.LoadFile(file)
		if err != nil {
			return err
		}
		for i, r := range recs {
			violations, err := g.ValidateContext(ctx, r, opts.profiles...)
			if err != nil {
				return mdwerror.Wrap(err, "validation failed").
					WithOperation("guardian.validate").
					WithDetail("file", file).
					WithDetail("index", i)
			}
			report.add(file, i, violations)
		}
	}

	if err := writeMetrics(opts.metricsFile, reg); err != nil {
		return err
	}

	if opts.asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		printReport(cmd.OutOrStdout(), report)
	}

	if report.Invalid > 0 {
		return errViolations
	}
	return nil
}

func (r *validationReport) add(file string, index int, violations []*constraint.Violation) {
	res := recordResult{File: file, Index: index, Valid: len(violations) == 0}
	for _, v := range violations {
		view := violationView{
			Field:     constraint.FieldPath(v.ContextPath),
			Path:      v.PathString(),
			Check:     v.CheckName,
			ErrorCode: v.ErrorCode,
			Message:   v.Message,
			Severity:  v.Severity,
		}
		if v.InvalidValue != nil {
			view.InvalidValue = constraint.Stringify(v.InvalidValue)
		}
		res.Violations = append(res.Violations, view)
	}
	r.Records++
	r.Violations += len(violations)
	if !res.Valid {
		r.Invalid++
	}
	r.Results = append(r.Results, res)
}

// selectType picks the declarations records are validated against.
// Records share one Go type, so a run covers exactly one rule type.
func selectType(path, name string) (configurer.TypeRules, error) {
	rs, err := configurer.ReadRules(path)
	if err != nil {
		return configurer.TypeRules{}, err
	}
	var names []string
	for _, tr := range rs.Types {
		if name == "" && len(rs.Types) == 1 || tr.Type == name {
			return tr, nil
		}
		names = append(names, tr.Type)
	}
	msg := "rule file declares several types, select one with --type"
	if name != "" {
		msg = "type not declared in rule file"
	}
	if len(names) == 0 {
		msg = "rule file declares no types"
	}
	return configurer.TypeRules{}, mdwerror.New(msg).
		WithCode(mdwerror.CodeInvalidArgument).
		WithOperation("guardian.validate").
		WithDetail("type", name).
		WithDetail("declared", strings.Join(names, ", "))
}

// attachObservers wires metrics, journal and publisher into g. The
// registry is nil when metrics are off.
func attachObservers(ctx context.Context, g *guard.Guard, s *settings.Settings, opts *validateOptions, logger *mdwlog.Logger) (*prometheus.Registry, func(), error) {
	var reg *prometheus.Registry
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if s.Metrics.Enabled || opts.metricsFile != "" {
		reg = prometheus.NewRegistry()
		g.AddObserver(metrics.New(reg, s.Metrics.Namespace))
	}

	if s.Journal.Enabled || opts.journal {
		store, err := journal.NewSQLiteStore(journal.SQLiteConfig{Path: s.Journal.Path})
		if err != nil {
			return reg, cleanup, err
		}
		closers = append(closers, func() { store.Close() })
		if s.Journal.RetentionDays > 0 {
			pruned, err := store.Prune(ctx, time.Duration(s.Journal.RetentionDays)*24*time.Hour)
			if err != nil {
				logger.WarnWithErr("Failed to prune journal", err)
			} else if pruned > 0 {
				logger.Info("Journal pruned", mdwlog.Fields{"deleted": pruned})
			}
		}
		g.AddObserver(journal.NewRecorder(store, "cli", logger.WithField("component", "journal")))
	}

	if s.Notify.Enabled || opts.notify {
		pub, err := notify.Connect(notify.Config{
			URL:        s.Notify.URL,
			Subject:    s.Notify.Subject,
			Source:     "guardian-cli",
			MaxRetries: s.Notify.MaxRetries,
			Timeout:    s.Notify.Timeout,
		}, logger.WithField("component", "notify"))
		if err != nil {
			return reg, cleanup, err
		}
		closers = append(closers, pub.Close)
		g.AddObserver(pub)
	}
	return reg, cleanup, nil
}

func writeMetrics(path string, reg *prometheus.Registry) error {
	if path == "" || reg == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return mdwerror.Wrap(err, "failed to write metrics").
			WithCode(mdwerror.CodeConfigError).
			WithDetail("path", path)
	}
	return nil
}

func printReport(w io.Writer, r *validationReport) {
	fmt.Fprintln(w, HeaderStyle.Render("guardian validate")+" "+MutedStyle.Render("type "+r.Type))
	fmt.Fprintln(w)

	for _, res := range r.Results {
		label := fmt.Sprintf("%s #%d", res.File, res.Index+1)
		if res.Valid {
			fmt.Fprintf(w, "  %s %s\n", OKStyle.Render("[+]"), label)
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", FailStyle.Render("[-]"), label)
		for _, v := range res.Violations {
			field := v.Field
			if field == "" {
				field = v.Path
			}
			fmt.Fprintf(w, "      %s %s %s\n", PathStyle.Render(field), v.Message, MutedStyle.Render("("+v.ErrorCode+")"))
		}
	}

	fmt.Fprintln(w)
	summary := fmt.Sprintf("%d records, %d valid, %d invalid, %d violations",
		r.Records, r.Records-r.Invalid, r.Invalid, r.Violations)
	style := OKStyle
	if r.Invalid > 0 {
		style = FailStyle
	}
	fmt.Fprintln(w, SummaryStyle.Render(style.Render(summary)))
}
