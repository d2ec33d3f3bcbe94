// -- cmd/scan.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/patterns"
	"github.com/xkilldash9x/taintscan/internal/config"
	"github.com/xkilldash9x/taintscan/internal/discovery"
	"github.com/xkilldash9x/taintscan/internal/observability"
	"github.com/xkilldash9x/taintscan/internal/orchestrator"
	"github.com/xkilldash9x/taintscan/internal/results"
)

// ErrFindingsPresent is returned by scan --fail-on-findings when the report
// is not empty.
var ErrFindingsPresent = errors.New("findings present")

func newScanCmd(a *app) *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scan files and directories for tainted data flows",
		Long: `Walks the given paths (the current directory by default), analyzes every
Python, JavaScript, TypeScript and Go file, and prints the merged report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			sc := a.cfg.Scan()
			sc.Targets = args
			a.cfg.SetScanConfig(sc)
			return runScan(cmd.Context(), a.cfg, observability.GetLogger(), cmd.OutOrStdout())
		},
	}

	flags := scanCmd.Flags()
	flags.StringP("output", "o", "", "write the report to this file instead of stdout")
	flags.StringP("format", "f", "json", "report format: json or text")
	flags.StringSlice("exclude", nil, "glob patterns to skip, replacing the configured list")
	flags.StringSlice("rules", nil, "additional rule files")
	flags.Bool("no-builtin-rules", false, "load only the rules given with --rules")
	flags.StringSlice("languages", nil, "restrict the semantic pass to these languages")
	flags.IntP("workers", "w", 0, "number of files analyzed concurrently")
	flags.Duration("timeout", 0, "analysis budget per file")
	flags.Bool("tolerant", false, "analyze files with syntax errors, skipping the broken regions")
	flags.Bool("fail-on-findings", false, "exit with status 2 when the report has findings")
	flags.String("metrics-file", "", "write Prometheus metrics for this scan to a textfile")

	annotate(flags, map[string]string{
		"output":           "scan.output",
		"format":           "scan.format",
		"exclude":          "scan.exclude",
		"rules":            "semantic.rules_files",
		"no-builtin-rules": "semantic.disable_builtin_rules",
		"languages":        "semantic.languages",
		"workers":          "engine.worker_concurrency",
		"timeout":          "engine.file_timeout",
		"tolerant":         "semantic.tolerate_syntax_errors",
		"fail-on-findings": "scan.fail_on_findings",
		"metrics-file":     "scan.metrics_file",
	})
	return scanCmd
}

// runScan wires discovery, the rule store, the semantic analyzer and the
// orchestrator together for one scan and writes the report.
func runScan(ctx context.Context, cfg config.Interface, logger *zap.Logger, stdout io.Writer) error {
	analyzer, err := newAnalyzer(cfg.Semantic(), logger)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(cfg, logger, analyzer)
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	scope, err := discovery.NewScope(cfg.Scan().Exclude)
	if err != nil {
		return err
	}
	files, err := discovery.New(scope, logger).Discover(ctx, cfg.Scan().Targets)
	if err != nil {
		return err
	}
	logger.Info("Discovered source files.", zap.Int("files", len(files)))

	var metrics *observability.Metrics
	if cfg.Scan().MetricsFile != "" {
		metrics = observability.NewMetrics()
		orch.SetMetrics(metrics)
	}

	report, scanErr := orch.Scan(ctx, files)
	if report != nil {
		if err := writeReport(report, cfg.Scan(), stdout); err != nil {
			return err
		}
	}
	if err := metrics.WriteFile(cfg.Scan().MetricsFile); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	if scanErr != nil {
		return scanErr
	}

	if cfg.Scan().FailOnFindings && len(report.Findings) > 0 {
		return ErrFindingsPresent
	}
	return nil
}

// newAnalyzer returns nil when the semantic pass is disabled.
func newAnalyzer(sc config.SemanticConfig, logger *zap.Logger) (*semantic.Analyzer, error) {
	if !sc.Enabled {
		return nil, nil
	}

	store := patterns.NewStore(nil, logger)
	if err := store.Reload(!sc.DisableBuiltinRules, sc.RulesFiles...); err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	opts := []semantic.Option{
		semantic.WithTolerance(sc.TolerateSyntaxErrors),
		semantic.WithMaxDepth(sc.MaxDepth),
		semantic.WithMaxFileSize(sc.MaxFileSize),
	}
	if len(sc.Languages) > 0 {
		langs := make([]schemas.Language, 0, len(sc.Languages))
		for _, l := range sc.Languages {
			langs = append(langs, schemas.Language(strings.ToLower(l)))
		}
		opts = append(opts, semantic.WithLanguages(langs...))
	}
	return semantic.NewAnalyzer(store, logger, opts...), nil
}

func writeReport(report *schemas.ScanReport, sc config.ScanConfig, stdout io.Writer) (err error) {
	out := stdout
	if sc.Output != "" {
		f, createErr := os.Create(sc.Output)
		if createErr != nil {
			return fmt.Errorf("creating report file: %w", createErr)
		}
		defer func() {
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
		}()
		out = f
	}

	switch sc.Format {
	case "text":
		return results.WriteText(out, report)
	default:
		return results.WriteJSON(out, report)
	}
}
