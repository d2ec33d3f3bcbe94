// -- cmd/rules.go --
package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/patterns"
)

func newRulesCmd(a *app) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate taint rules",
	}
	rulesCmd.AddCommand(newRulesListCmd(a))
	rulesCmd.AddCommand(newRulesValidateCmd())
	return rulesCmd
}

func newRulesListCmd(a *app) *cobra.Command {
	var (
		language string
		role     string
		asJSON   bool
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the active rules (builtin plus configured rule files)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := a.cfg.Semantic()
			reg, err := patterns.Compose(!sc.DisableBuiltinRules, sc.RulesFiles...)
			if err != nil {
				return err
			}

			specs := filterSpecs(reg.Specs(), schemas.Language(strings.ToLower(language)), patterns.Role(strings.ToLower(role)))
			if asJSON {
				enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(specs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tROLE\tCATEGORY\tLANGUAGES\tMATCH")
			for i := range specs {
				s := &specs[i]
				kind, pattern := s.Predicate()
				category := string(s.Category)
				if category == "" {
					category = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s %s\n", s.ID, s.Role, category, joinLanguages(s.Languages), kind, pattern)
			}
			return tw.Flush()
		},
	}

	listCmd.Flags().StringVarP(&language, "language", "l", "", "only rules for this language")
	listCmd.Flags().StringVar(&role, "role", "", "only rules with this role (source, sink, sanitizer, passthrough)")
	listCmd.Flags().BoolVar(&asJSON, "json", false, "print the rules as JSON")
	return listCmd
}

func newRulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check rule files against the rule schema",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, file := range args {
				specs, err := patterns.LoadFile(file)
				if err == nil {
					// Catches duplicate ids and bad name patterns.
					_, err = patterns.New(file, specs...)
				}
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", file, err)
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s (%d rules)\n", file, len(specs))
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d of %d rule files are invalid: %w", len(errs), len(args), errors.Join(errs...))
			}
			return nil
		},
	}
}

func filterSpecs(specs []patterns.Spec, language schemas.Language, role patterns.Role) []patterns.Spec {
	out := make([]patterns.Spec, 0, len(specs))
	for _, s := range specs {
		if role != "" && s.Role != role {
			continue
		}
		if language != "" && !hasLanguage(s.Languages, language) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func hasLanguage(langs []schemas.Language, want schemas.Language) bool {
	for _, l := range langs {
		if l == want {
			return true
		}
	}
	return false
}

func joinLanguages(langs []schemas.Language) string {
	parts := make([]string, len(langs))
	for i, l := range langs {
		parts[i] = string(l)
	}
	return strings.Join(parts, ",")
}
