// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/patterns"
	"github.com/xkilldash9x/taintscan/internal/config"
	"github.com/xkilldash9x/taintscan/internal/mocks"
	"github.com/xkilldash9x/taintscan/internal/observability"
)

// -- Fixtures --

const (
	vulnerablePy = "import os\nname = input()\nos.system(name)\n"
	cleanPy      = "import os\nos.system('uptime')\n"
	brokenPy     = "def broken(:\n    pass\n"
)

func src(path, content string) schemas.SourceFile {
	return schemas.SourceFile{Path: path, Content: []byte(content)}
}

func newAnalyzer(t *testing.T) *semantic.Analyzer {
	t.Helper()
	reg, err := patterns.Builtin()
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	return semantic.NewAnalyzer(patterns.NewStore(reg, logger), logger)
}

func newOrchestrator(t *testing.T, cfg *config.Config, detectors ...schemas.Detector) *Orchestrator {
	t.Helper()
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	o, err := New(cfg, zaptest.NewLogger(t), newAnalyzer(t), detectors...)
	require.NoError(t, err)
	return o
}

func quietDetector() *mocks.MockDetector {
	d := new(mocks.MockDetector)
	d.On("Name").Return("regex").Maybe()
	return d
}

func warningKinds(r *schemas.ScanReport, file string) []schemas.WarningKind {
	var kinds []schemas.WarningKind
	for _, w := range r.Warnings {
		if w.File == file {
			kinds = append(kinds, w.Kind)
		}
	}
	return kinds
}

// -- Constructor --

func TestNew_Validation(t *testing.T) {
	cfg := config.NewDefaultConfig()
	logger := zap.NewNop()

	_, err := New(nil, logger, newAnalyzer(t))
	assert.Error(t, err)

	_, err = New(cfg, nil, newAnalyzer(t))
	assert.Error(t, err)

	_, err = New(cfg, logger, nil)
	assert.ErrorContains(t, err, "no detectors configured")

	_, err = New(cfg, logger, newAnalyzer(t), nil)
	assert.ErrorContains(t, err, "detector 0 is nil")

	o, err := New(cfg, logger, nil, quietDetector())
	require.NoError(t, err)
	assert.Nil(t, o.semantic)
}

// -- Scan --

func TestScan_MergesAndDeduplicates(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := quietDetector()
	d.On("Detect", mock.Anything, mock.MatchedBy(func(f schemas.SourceFile) bool { return f.Path == "a.py" })).Return([]schemas.Finding{
		{File: "a.py", Line: 3, Category: schemas.CategoryCommandInjection, Severity: schemas.SeverityHigh},
		{File: "a.py", Line: 1, Category: "hardcoded_secret", Severity: schemas.SeverityMedium},
	}, nil)
	d.On("Detect", mock.Anything, mock.Anything).Return(nil, nil)

	o := newOrchestrator(t, nil, d)
	report, err := o.Scan(context.Background(), []schemas.SourceFile{
		src("b.py", cleanPy),
		src("a.py", vulnerablePy),
		src("notes.txt", "nothing to see"),
	})
	require.NoError(t, err)

	require.Len(t, report.Findings, 2)
	assert.Equal(t, "a.py", report.Findings[0].File)
	assert.Equal(t, 1, report.Findings[0].Line, "program order within a file")
	assert.Equal(t, "regex", report.Findings[0].Detector)
	assert.Equal(t, "hardcoded_secret", string(report.Findings[0].Category))

	sem := report.Findings[1]
	assert.Equal(t, 3, sem.Line)
	assert.Equal(t, "semantic", sem.Detector, "the semantic finding wins the duplicate")
	assert.Equal(t, schemas.SeverityCritical, sem.Severity)
	assert.NotEmpty(t, sem.PropagationPath)

	assert.NotEmpty(t, report.ScanID)
	assert.Equal(t, 2, report.Summary.FilesScanned)
	assert.Equal(t, 1, report.Summary.FilesSkipped)
	assert.Equal(t, 2, report.Summary.TotalFindings)
	assert.Equal(t, 1, report.Summary.ByCategory[schemas.CategoryCommandInjection])
	assert.False(t, report.CompletedAt.Before(report.StartedAt))
	d.AssertNumberOfCalls(t, "Detect", 3)
}

func TestScan_ParseErrorDegradesToDetectors(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := quietDetector()
	d.On("Detect", mock.Anything, mock.Anything).Return([]schemas.Finding{
		{Line: 1, Category: "hardcoded_secret", Severity: schemas.SeverityLow},
	}, nil)

	o := newOrchestrator(t, nil, d)
	report, err := o.Scan(context.Background(), []schemas.SourceFile{src("broken.py", brokenPy), src("ok.py", vulnerablePy)})
	require.NoError(t, err, "a malformed file never aborts the scan")

	assert.Equal(t, []schemas.WarningKind{schemas.WarningParseError}, warningKinds(report, "broken.py"))

	var broken, ok []schemas.Finding
	for _, f := range report.Findings {
		switch f.File {
		case "broken.py":
			broken = append(broken, f)
		case "ok.py":
			ok = append(ok, f)
		}
	}
	require.Len(t, broken, 1)
	assert.Equal(t, "regex", broken[0].Detector)
	assert.Len(t, ok, 2, "detector finding plus the semantic one")
}

func TestScan_TimeoutDropsSemanticFindings(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := quietDetector()
	d.On("Detect", mock.Anything, mock.MatchedBy(func(f schemas.SourceFile) bool { return f.Path == "slow.py" })).
		Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
		Return(nil, context.DeadlineExceeded)
	d.On("Detect", mock.Anything, mock.Anything).Return(nil, nil)

	cfg := config.NewDefaultConfig()
	cfg.SetEngineFileTimeout(50 * time.Millisecond)
	o := newOrchestrator(t, cfg, d)

	report, err := o.Scan(context.Background(), []schemas.SourceFile{src("fast.py", vulnerablePy), src("slow.py", vulnerablePy)})
	require.NoError(t, err)

	assert.Equal(t, []schemas.WarningKind{schemas.WarningTimeout}, warningKinds(report, "slow.py"))
	assert.Empty(t, warningKinds(report, "fast.py"))
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "fast.py", report.Findings[0].File)
}

func TestScan_DetectorFailureIsAWarning(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := quietDetector()
	d.On("Detect", mock.Anything, mock.Anything).Return(nil, errors.New("regex engine exploded"))

	o := newOrchestrator(t, nil, d)
	report, err := o.Scan(context.Background(), []schemas.SourceFile{src("a.py", vulnerablePy)})
	require.NoError(t, err)

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, schemas.WarningDetectorFailed, report.Warnings[0].Kind)
	assert.Contains(t, report.Warnings[0].Message, "regex: regex engine exploded")
	assert.Len(t, report.Findings, 1, "semantic findings survive a detector failure")
}

func TestScan_RecordsMetrics(t *testing.T) {
	defer goleak.VerifyNone(t)

	o := newOrchestrator(t, nil)
	m := observability.NewMetrics()
	o.SetMetrics(m)

	_, err := o.Scan(context.Background(), []schemas.SourceFile{
		src("a.py", vulnerablePy),
		src("b.py", brokenPy),
		src("notes.txt", "hello"),
	})
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(m.Registry(), "taintscan_files_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "scanned and skipped series")
	count, err = testutil.GatherAndCount(m.Registry(), "taintscan_findings_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = testutil.GatherAndCount(m.Registry(), "taintscan_warnings_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestScan_Deterministic(t *testing.T) {
	defer goleak.VerifyNone(t)

	files := []schemas.SourceFile{
		src("a.py", vulnerablePy),
		src("b.js", "const { exec } = require('child_process');\nexec(req.query.cmd);\n"),
		src("c.py", "import os, sqlite3\nq = input()\ncur.execute('SELECT ' + q)\nopen(q)\n"),
		src("d.py", cleanPy),
	}
	o := newOrchestrator(t, nil)

	first, err := o.Scan(context.Background(), files)
	require.NoError(t, err)
	require.NotEmpty(t, first.Findings)
	for i := 0; i < 5; i++ {
		again, err := o.Scan(context.Background(), files)
		require.NoError(t, err)
		if diff := cmp.Diff(first.Findings, again.Findings); diff != "" {
			t.Fatalf("findings changed between runs (-first +again):\n%s", diff)
		}
	}
}

func TestScan_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newOrchestrator(t, nil)
	report, err := o.Scan(ctx, []schemas.SourceFile{src("a.py", vulnerablePy)})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, report.Findings)
}

func TestScan_SemanticDisabled(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := quietDetector()
	d.On("Detect", mock.Anything, mock.Anything).Return([]schemas.Finding{{Line: 2, Category: "prompt_injection"}}, nil)

	o, err := New(config.NewDefaultConfig(), zaptest.NewLogger(t), nil, d)
	require.NoError(t, err)

	report, err := o.Scan(context.Background(), []schemas.SourceFile{src("a.py", vulnerablePy)})
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "a.py", report.Findings[0].File, "the file path is filled in for detectors that omit it")
}

// -- Deduplication --

func TestDeduplicate(t *testing.T) {
	f := func(file string, line int, cat schemas.Category, det string) schemas.Finding {
		return schemas.Finding{File: file, Line: line, Category: cat, Detector: det}
	}

	tests := []struct {
		name string
		in   []schemas.Finding
		want []schemas.Finding
	}{
		{
			name: "distinct keys survive",
			in:   []schemas.Finding{f("a", 1, "x", "regex"), f("a", 1, "y", "regex"), f("a", 2, "x", "regex"), f("b", 1, "x", "regex")},
			want: []schemas.Finding{f("a", 1, "x", "regex"), f("a", 1, "y", "regex"), f("a", 2, "x", "regex"), f("b", 1, "x", "regex")},
		},
		{
			name: "semantic replaces an earlier detector finding in place",
			in:   []schemas.Finding{f("a", 1, "x", "regex"), f("a", 2, "y", "regex"), f("a", 1, "x", "semantic")},
			want: []schemas.Finding{f("a", 1, "x", "semantic"), f("a", 2, "y", "regex")},
		},
		{
			name: "first semantic finding wins",
			in:   []schemas.Finding{{File: "a", Line: 1, Category: "x", Detector: "semantic", Column: 1}, {File: "a", Line: 1, Category: "x", Detector: "semantic", Column: 9}},
			want: []schemas.Finding{{File: "a", Line: 1, Category: "x", Detector: "semantic", Column: 1}},
		},
		{
			name: "detector duplicates collapse to the first",
			in:   []schemas.Finding{f("a", 1, "x", "regex"), f("a", 1, "x", "heuristic")},
			want: []schemas.Finding{f("a", 1, "x", "regex")},
		},
		{name: "empty", in: nil, want: []schemas.Finding{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Deduplicate(tc.in))
		})
	}
}
