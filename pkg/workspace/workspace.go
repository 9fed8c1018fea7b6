// Package workspace picks the files worth scanning for utility classes.
package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-enry/go-enry/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/unoclass/pkg/matcher"
)

// Filter decides whether a path is a scan target. Patterns use doublestar
// syntax and are matched against slash-separated paths.
type Filter struct {
	Include []string
	Exclude []string
}

func (f Filter) Validate() error {
	for _, p := range append(append([]string{}, f.Include...), f.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return errors.Errorf("invalid glob pattern %q", p)
		}
	}
	return nil
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// IsTarget reports whether path should be scanned. An empty Include list
// accepts every path.
func (f Filter) IsTarget(path string) bool {
	p := filepath.ToSlash(path)
	if matchAny(f.Exclude, p) {
		return false
	}
	if len(f.Include) == 0 {
		return true
	}
	return matchAny(f.Include, p)
}

// SkipDir reports whether nothing below the directory rel can be a target.
func (f Filter) SkipDir(rel string) bool {
	if rel == "." || rel == "" {
		return false
	}
	return matchAny(f.Exclude, filepath.ToSlash(rel)+"/_")
}

// Collect reads every target under paths. Directories are walked; vendored
// and binary files are skipped.
func Collect(ctx context.Context, fs afero.Fs, filter Filter, paths []string) ([]matcher.Document, error) {
	logger := zerolog.Ctx(ctx)

	if err := filter.Validate(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var docs []matcher.Document

	// rel is the path relative to the walked root, empty for explicit files.
	// path is cleaned so document ids match the names file events carry.
	add := func(path, rel string) error {
		path = filepath.Clean(path)
		if _, ok := seen[path]; ok {
			return nil
		}
		seen[path] = struct{}{}

		if rel != "" && (!filter.IsTarget(rel) || enry.IsVendor(filepath.ToSlash(rel))) {
			return nil
		}

		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return errors.Errorf("reading %s: %w", path, err)
		}
		if enry.IsBinary(data) {
			logger.Debug().Str("path", path).Msg("skipping binary file")
			return nil
		}

		docs = append(docs, matcher.Document{
			ID:       path,
			Text:     string(data),
			Language: enry.GetLanguage(filepath.Base(path), data),
		})
		return nil
	}

	for _, root := range paths {
		info, err := fs.Stat(root)
		if err != nil {
			return nil, errors.Errorf("stat %s: %w", root, err)
		}

		if !info.IsDir() {
			if err := add(root, ""); err != nil {
				return nil, err
			}
			continue
		}

		err = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if info.IsDir() {
				if filter.SkipDir(rel) {
					return filepath.SkipDir
				}
				return nil
			}
			return add(path, rel)
		})
		if err != nil {
			return nil, errors.Errorf("walking %s: %w", root, err)
		}
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	logger.Debug().Int("documents", len(docs)).Msg("collected documents")

	return docs, nil
}
