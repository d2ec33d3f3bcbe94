// internal/discovery/discovery_test.go
package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/taintscan/api/schemas"
)

// -- Helpers --

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func paths(root string, files []schemas.SourceFile) []string {
	var out []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f.Path)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

// -- Scope --

func TestNewScope_InvalidPattern(t *testing.T) {
	_, err := NewScope([]string{"[unterminated"})
	assert.ErrorContains(t, err, "invalid exclude pattern")
}

func TestScope_InScope(t *testing.T) {
	s, err := NewScope([]string{"node_modules", "*.min.js", "internal/gen/*"})
	require.NoError(t, err)

	tests := []struct {
		rel  string
		want bool
	}{
		{"app.py", true},
		{"node_modules", false},
		{"web/node_modules/lodash/index.js", false},
		{"web/app.min.js", false},
		{"web/app.js", true},
		{"internal/gen/models.go", false},
		{"internal/gen", true},
		{"internal/api/handler.go", true},
	}
	for _, tc := range tests {
		t.Run(tc.rel, func(t *testing.T) {
			assert.Equal(t, tc.want, s.InScope(filepath.FromSlash(tc.rel)))
		})
	}

	var none *Scope
	assert.True(t, none.InScope("anything"))
}

// -- Discover --

func TestDiscover_WalksAndFilters(t *testing.T) {
	root := writeTree(t, map[string]string{
		"app.py":                    "print(1)\n",
		"web/index.ts":              "let x = 1\n",
		"web/view.tsx":              "export {}\n",
		"web/node_modules/dep/a.js": "module.exports = 1\n",
		"cmd/main.go":               "package main\n",
		"README.md":                 "# readme\n",
		"vendor/lib/lib.go":         "package lib\n",
		"scripts/tool.min.js":       "x\n",
	})
	scope, err := NewScope([]string{"node_modules", "vendor", "*.min.js"})
	require.NoError(t, err)

	files, err := New(scope, zaptest.NewLogger(t)).Discover(context.Background(), []string{root})
	require.NoError(t, err)

	assert.Equal(t, []string{"app.py", "cmd/main.go", "web/index.ts", "web/view.tsx"}, paths(root, files))
	langs := map[string]schemas.Language{}
	for _, f := range files {
		langs[filepath.Base(f.Path)] = f.Language
	}
	assert.Equal(t, schemas.LanguagePython, langs["app.py"])
	assert.Equal(t, schemas.LanguageGo, langs["main.go"])
	assert.Equal(t, schemas.LanguageTypeScript, langs["index.ts"])
	assert.Equal(t, schemas.LanguageTSX, langs["view.tsx"])
	assert.Equal(t, "print(1)\n", string(files[0].Content))
}

func TestDiscover_ExplicitFilesAndDuplicates(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "x = 1\n", "notes.txt": "hi\n"})
	a := filepath.Join(root, "a.py")
	notes := filepath.Join(root, "notes.txt")

	files, err := New(nil, nil).Discover(context.Background(), []string{notes, a, root})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.py", "notes.txt"}, paths(root, files), "an explicit file is kept even without a known language")
	assert.Equal(t, schemas.LanguageUnknown, files[1].Language)
}

func TestDiscover_MissingTarget(t *testing.T) {
	_, err := New(nil, nil).Discover(context.Background(), []string{filepath.Join(t.TempDir(), "missing")})
	assert.ErrorContains(t, err, "scan target")
}

func TestDiscover_Cancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "x\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil, nil).Discover(ctx, []string{root})
	assert.ErrorIs(t, err, context.Canceled)
}
