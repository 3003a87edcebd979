package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	"github.com/msto63/guardian/pkg/configurer"
	"github.com/msto63/guardian/pkg/constraint/checks"
)

type rulesOptions struct {
	typeName string
	asJSON   bool
}

func newRulesCommand(global *globalOptions) *cobra.Command {
	opts := &rulesOptions{}
	cmd := &cobra.Command{
		Use:   "rules [flags] FILE",
		Short: "List and check the declarations of a rule file",
		Long: `Rules prints the declarations of a rule file per type and checks that
every named check exists and accepts its options.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := global.loadSettings(cmd); err != nil {
				return err
			}
			return runRules(cmd.OutOrStdout(), opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.typeName, "type", "t", "", "only list this type")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the parsed rules as JSON")
	return cmd
}

// checkProblem reports a check spec the registry rejects
type checkProblem struct {
	Type   string `json:"type"`
	Member string `json:"member"`
	Check  string `json:"check"`
	Error  string `json:"error"`
}

func runRules(w io.Writer, opts *rulesOptions, path string) error {
	rs, err := configurer.ReadRules(path)
	if err != nil {
		return err
	}
	var types []configurer.TypeRules
	for _, tr := range rs.Types {
		if opts.typeName == "" || tr.Type == opts.typeName {
			types = append(types, tr)
		}
	}
	if opts.typeName != "" && len(types) == 0 {
		return mdwerror.New("type not declared in rule file").
			WithCode(mdwerror.CodeNotFound).
			WithDetail("type", opts.typeName)
	}

	registry := checks.NewRegistry()
	var problems []checkProblem
	for _, tr := range types {
		problems = append(problems, checkTypeRules(registry, tr)...)
	}

	if opts.asJSON {
		data, err := json.MarshalIndent(struct {
			Types    []configurer.TypeRules `json:"types"`
			Problems []checkProblem         `json:"problems,omitempty"`
		}{types, problems}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	} else {
		printRules(w, path, types, problems)
	}

	if len(problems) > 0 {
		return mdwerror.New("rule file has invalid checks").
			WithCode(mdwerror.CodeInvalidConfiguration).
			WithDetail("problems", len(problems))
	}
	return nil
}

// checkTypeRules creates every check of tr. Simple checks registered in
// code cannot be resolved here and are reported.
func checkTypeRules(registry *checks.Registry, tr configurer.TypeRules) []checkProblem {
	var problems []checkProblem
	try := func(member string, specs []configurer.CheckSpec, exclusion bool) {
		for _, spec := range specs {
			var err error
			if exclusion {
				_, err = registry.CreateExclusion(spec.Name(), spec.Options())
			} else {
				_, err = registry.Create(spec.Name(), spec.Options())
			}
			if err != nil {
				problems = append(problems, checkProblem{Type: tr.Type, Member: member, Check: spec.String(), Error: err.Error()})
			}
		}
	}
	for _, f := range tr.Fields {
		try(f.Name, f.Checks, false)
	}
	for _, inv := range tr.Invariants {
		try(inv.Name+"()", inv.Checks, false)
	}
	try("object", tr.Object, false)
	for _, m := range tr.Methods {
		for i, p := range m.Parameters {
			member := fmt.Sprintf("%s(#%d)", m.Name, i)
			if p.Name != "" {
				member = m.Name + "(" + p.Name + ")"
			}
			try(member, p.Checks, false)
			try(member, p.Exclusions, true)
		}
		try(m.Name+"() return", m.Returns, false)
	}
	return problems
}

func printRules(w io.Writer, path string, types []configurer.TypeRules, problems []checkProblem) {
	fmt.Fprintln(w, HeaderStyle.Render("guardian rules")+" "+MutedStyle.Render(path))

	bad := make(map[string]string, len(problems))
	for _, p := range problems {
		bad[p.Type+"|"+p.Member+"|"+p.Check] = p.Error
	}
	line := func(tr configurer.TypeRules, member string, specs []configurer.CheckSpec) {
		if len(specs) == 0 {
			return
		}
		names := make([]string, len(specs))
		var errs []string
		for i, spec := range specs {
			names[i] = spec.String()
			if e, ok := bad[tr.Type+"|"+member+"|"+spec.String()]; ok {
				names[i] = FailStyle.Render(names[i])
				errs = append(errs, e)
			}
		}
		fmt.Fprintf(w, "    %-20s %s\n", PathStyle.Render(member), strings.Join(names, ", "))
		for _, e := range errs {
			fmt.Fprintf(w, "    %-20s %s\n", "", WarnStyle.Render(e))
		}
	}

	for _, tr := range types {
		fmt.Fprintln(w)
		title := tr.Type
		if tr.Guarded {
			title += " " + MutedStyle.Render("(guarded)")
		}
		fmt.Fprintln(w, "  "+HeaderStyle.Render(title))

		if len(tr.Fields) > 0 {
			fmt.Fprintln(w, "  "+SectionStyle.Render("fields"))
			for _, f := range tr.Fields {
				line(tr, f.Name, f.Checks)
			}
		}
		if len(tr.Invariants) > 0 {
			fmt.Fprintln(w, "  "+SectionStyle.Render("invariants"))
			for _, inv := range tr.Invariants {
				line(tr, inv.Name+"()", inv.Checks)
			}
		}
		if len(tr.Object) > 0 {
			fmt.Fprintln(w, "  "+SectionStyle.Render("object"))
			line(tr, "object", tr.Object)
		}
		if len(tr.Methods) > 0 {
			fmt.Fprintln(w, "  "+SectionStyle.Render("methods"))
			for _, m := range tr.Methods {
				for i, p := range m.Parameters {
					member := fmt.Sprintf("%s(#%d)", m.Name, i)
					if p.Name != "" {
						member = m.Name + "(" + p.Name + ")"
					}
					line(tr, member, p.Checks)
				}
				line(tr, m.Name+"() return", m.Returns)
				for _, pre := range m.Pre {
					fmt.Fprintf(w, "    %-20s pre  %s\n", PathStyle.Render(m.Name+"()"), pre.Expr)
				}
				for _, post := range m.Post {
					fmt.Fprintf(w, "    %-20s post %s\n", PathStyle.Render(m.Name+"()"), post.Expr)
				}
			}
		}
	}

	fmt.Fprintln(w)
	if len(problems) == 0 {
		fmt.Fprintln(w, OKStyle.Render(fmt.Sprintf("%d types, all checks valid", len(types))))
	} else {
		fmt.Fprintln(w, FailStyle.Render(fmt.Sprintf("%d types, %d invalid checks", len(types), len(problems))))
	}
}
