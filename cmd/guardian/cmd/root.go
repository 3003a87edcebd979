package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	"github.com/msto63/guardian/pkg/settings"
)

// Exit codes
const (
	ExitOK         = 0
	ExitViolations = 1
	ExitError      = 2
)

// errViolations is returned by validate when a record violates its rules
var errViolations = errors.New("constraint violations found")

type globalOptions struct {
	configFile string
	verbose    bool
}

// NewRootCommand builds the guardian command tree
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "guardian",
		Short: "guardian - runtime constraint validation",
		Long: `guardian validates records against declarative constraint rules.

Commands:
  validate  - validate YAML or JSON records against a rule file
  rules     - list and check the declarations of a rule file
  version   - print build information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: $GUARDIAN_CONFIG, ./guardian.toml, ./guardian.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newValidateCommand(opts), newRulesCommand(opts), newVersionCommand())
	return root
}

// Execute runs the command line and returns the process exit code
func Execute() int {
	root := NewRootCommand()
	return exitCode(root, root.Execute())
}

func exitCode(root *cobra.Command, err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errViolations):
		return ExitViolations
	default:
		printError(root, err)
		return ExitError
	}
}

func printError(root *cobra.Command, err error) {
	msg := err.Error()
	var mdwErr *mdwerror.Error
	if errors.As(err, &mdwErr) && mdwErr.Code() != "" {
		msg = fmt.Sprintf("%s [%s]", msg, mdwErr.Code())
	}
	fmt.Fprintln(root.ErrOrStderr(), ErrorStyle.Render("Error: ")+msg)
}

// loadSettings reads --config or the default locations, with logs sent to
// the command's stderr
func (o *globalOptions) loadSettings(cmd *cobra.Command) (*settings.Settings, error) {
	var (
		s   *settings.Settings
		err error
	)
	if o.configFile != "" {
		s, err = settings.Load(o.configFile)
	} else {
		s, err = settings.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}
	s.Log.Output = cmd.ErrOrStderr()
	if o.verbose {
		s.Log.Level = "debug"
	}
	return s, nil
}
