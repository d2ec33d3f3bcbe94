// internal/discovery/discovery.go
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/lang"
)

// Discoverer turns scan targets into SourceFiles.
type Discoverer struct {
	scope  *Scope
	logger *zap.Logger
}

// New creates a Discoverer. A nil scope admits everything.
func New(scope *Scope, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{scope: scope, logger: logger.Named("discovery")}
}

// Discover walks every target and returns the files with a supported
// language, sorted by path. Targets naming a file directly are always
// included, whatever their extension, so the scan can report them as
// skipped. Unreadable entries below a directory are logged and ignored.
func (d *Discoverer) Discover(ctx context.Context, targets []string) ([]schemas.SourceFile, error) {
	seen := make(map[string]bool)
	var out []schemas.SourceFile

	add := func(p string) {
		if seen[p] {
			return
		}
		content, err := os.ReadFile(p)
		if err != nil {
			d.logger.Warn("Could not read file, skipping.", zap.String("file", p), zap.Error(err))
			return
		}
		seen[p] = true
		out = append(out, schemas.SourceFile{Path: p, Language: lang.Detect(p), Content: content})
	}

	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, fmt.Errorf("scan target %q: %w", target, err)
		}
		if !info.IsDir() {
			add(filepath.Clean(target))
			continue
		}

		root := filepath.Clean(target)
		err = filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				d.logger.Warn("Could not access path, skipping.", zap.String("path", p), zap.Error(err))
				if entry != nil && entry.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if p == root {
				return nil
			}

			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				rel = p
			}
			if !d.scope.InScope(rel) {
				if entry.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if entry.IsDir() || !entry.Type().IsRegular() {
				return nil
			}
			if lang.Detect(p) == schemas.LanguageUnknown {
				return nil
			}
			add(p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %q: %w", target, err)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	d.logger.Info("Discovery complete.", zap.Int("files", len(out)), zap.Int("targets", len(targets)))
	return out, nil
}
