// Package fileset resolves gulp-style glob lists, where patterns prefixed with "!" exclude matches.
package fileset

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type pattern struct {
	base string
	glob string
}

// Set is a lazily resolved list of files under root. Every call to Files globs the tree again.
type Set struct {
	root    string
	include []pattern
	exclude []string
}

// File is a matched file. Path is slash separated and relative to the set root.
type File struct {
	Path string
	Base string
}

// Rel returns the path relative to the glob base, the part that outputs mirror.
func (f File) Rel() string {
	if f.Base == "" || f.Base == "." {
		return f.Path
	}
	return strings.TrimPrefix(f.Path, f.Base+"/")
}

func New(root string, patterns ...string) *Set {
	s := &Set{root: root}
	for _, p := range patterns {
		if strings.HasPrefix(p, "!") {
			s.exclude = append(s.exclude, Clean(p[1:]))
			continue
		}
		glob := Clean(p)
		base, _ := doublestar.SplitPattern(glob)
		s.include = append(s.include, pattern{base: base, glob: glob})
	}
	return s
}

// Clean turns "./a/b/*.js" into "a/b/*.js", the unrooted form doublestar expects.
func Clean(p string) string {
	p = filepath.ToSlash(p)
	p = strings.TrimPrefix(p, "./")
	if p == "" {
		return "."
	}
	return path.Clean(p)
}

func (s *Set) Root() string {
	return s.root
}

// Files resolves the set. Results are sorted so that every run sees the same order.
func (s *Set) Files() ([]File, error) {
	fsys := os.DirFS(s.root)
	seen := map[string]struct{}{}
	var out []File

	for _, inc := range s.include {
		matches, err := doublestar.Glob(fsys, inc.glob, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", inc.glob, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			if s.excluded(m) {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, File{Path: m, Base: inc.base})
		}
	}
	return out, nil
}

// Match reports whether a slash separated path relative to root belongs to the set.
func (s *Set) Match(rel string) bool {
	rel = Clean(rel)
	if s.excluded(rel) {
		return false
	}
	for _, inc := range s.include {
		if ok, _ := doublestar.Match(inc.glob, rel); ok {
			return true
		}
	}
	return false
}

func (s *Set) excluded(rel string) bool {
	for _, ex := range s.exclude {
		if ok, _ := doublestar.Match(ex, rel); ok {
			return true
		}
	}
	return false
}

// Abs returns the filesystem path of f.
func (s *Set) Abs(f File) string {
	return filepath.Join(s.root, filepath.FromSlash(f.Path))
}
