package scripts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toastate/toastpipe/internal/fileset"
	"github.com/toastate/toastpipe/internal/fsutil"
)

var jsGlobs = []string{"./assets/js/**/*.js", "!./assets/js/**/*.min.js", "!./assets/js/**/all.js"}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func read(t *testing.T, root, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(b)
}

func TestBundle(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"assets/js/a.js": "a",
		"assets/js/b.js": "b",
	})

	out, err := Bundle(context.Background(), fileset.New(root, jsGlobs...), "./assets/js", "all.js")
	require.NoError(t, err)
	assert.Equal(t, "assets/js/all.js", out)
	assert.Equal(t, "a\nb", read(t, root, out))
}

func TestBundle_OrderAndSubfolders(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"assets/js/z.js":          "z",
		"assets/js/lib/m.js":      "m",
		"assets/js/a.js":          "a",
		"assets/js/vendor.min.js": "skipped",
	})

	out, err := Bundle(context.Background(), fileset.New(root, jsGlobs...), "./assets/js", "all.js")
	require.NoError(t, err)
	assert.Equal(t, "a\nm\nz", read(t, root, out))
}

func TestBundle_ExcludesItself(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"assets/js/a.js": "a",
		"assets/js/b.js": "b",
	})
	set := fileset.New(root, jsGlobs...)

	_, err := Bundle(context.Background(), set, "./assets/js", "all.js")
	require.NoError(t, err)
	first := read(t, root, "assets/js/all.js")

	_, err = Bundle(context.Background(), set, "./assets/js", "all.js")
	require.NoError(t, err)
	assert.Equal(t, first, read(t, root, "assets/js/all.js"))

	// Even without the exclusion the previous bundle is never read back in.
	unguarded := fileset.New(root, "./assets/js/*.js")
	_, err = Bundle(context.Background(), unguarded, "./assets/js", "all.js")
	require.NoError(t, err)
	assert.Equal(t, first, read(t, root, "assets/js/all.js"))
}

func TestBundle_NoSources(t *testing.T) {
	root := t.TempDir()

	out, err := Bundle(context.Background(), fileset.New(root, jsGlobs...), "./assets/js", "all.js")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoFileExists(t, filepath.Join(root, "assets", "js", "all.js"))
}

func TestMinName(t *testing.T) {
	assert.Equal(t, "a.min.js", MinName("a.js"))
	assert.Equal(t, "lib/b.min.js", MinName("lib/b.js"))
}

func TestMinifyEach(t *testing.T) {
	engines := []Engine{NewUglify(), NewES6()}
	for _, engine := range engines {
		t.Run(engine.Name(), func(t *testing.T) {
			root := t.TempDir()
			writeFiles(t, root, map[string]string{
				"assets/js/a.js":       "function add(first, second) {\n  return first + second;\n}\n",
				"assets/js/lib/b.js":   "var greeting = 'hello';\nconsole.log(greeting);\n",
				"assets/js/all.js":     "bundle",
				"assets/js/old.min.js": "old",
			})

			written, err := MinifyEach(context.Background(), fileset.New(root, jsGlobs...), "./assets/js", engine)
			require.NoError(t, err)
			assert.Equal(t, []string{"assets/js/a.min.js", "assets/js/lib/b.min.js"}, written)

			a := read(t, root, "assets/js/a.min.js")
			assert.NotContains(t, a, "\n  ")
			assert.Less(t, len(a), len("function add(first, second) {\n  return first + second;\n}\n"))
			assert.Contains(t, read(t, root, "assets/js/lib/b.min.js"), "console.log")

			assert.NoFileExists(t, filepath.Join(root, "assets", "js", "all.min.js"))
			assert.NoFileExists(t, filepath.Join(root, "assets", "js", "old.min.min.js"))
		})
	}
}

func TestMinifyEach_ModernSyntax(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"assets/js/a.js": "const f = async (x) => { const { y = 1 } = x; return `${y}`; };\nf({});\n",
	})

	_, err := MinifyEach(context.Background(), fileset.New(root, jsGlobs...), "./assets/js", NewES6())
	require.NoError(t, err)
	assert.Contains(t, read(t, root, "assets/js/a.min.js"), "async")
}

func TestMinifyEach_ContinuesPastBadFile(t *testing.T) {
	for _, engine := range []Engine{NewUglify(), NewES6()} {
		t.Run(engine.Name(), func(t *testing.T) {
			root := t.TempDir()
			writeFiles(t, root, map[string]string{
				"assets/js/a.js":   "var ok = 1;\n",
				"assets/js/bad.js": "function (\n",
			})

			written, err := MinifyEach(context.Background(), fileset.New(root, jsGlobs...), "./assets/js", engine)
			require.Error(t, err)

			var fe *fsutil.FileError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "assets/js/bad.js", fe.File)
			assert.Equal(t, []string{"assets/js/a.min.js"}, written)
			assert.NoFileExists(t, filepath.Join(root, "assets", "js", "bad.min.js"))
		})
	}
}

func TestES6_TopLevel(t *testing.T) {
	src := []byte("function helper(value) {\n  return value + 1;\n}\nconsole.log(helper(1));\n")

	kept, err := NewES6().Minify(src, "a.js")
	require.NoError(t, err)
	assert.Contains(t, string(kept), "helper", "globals stay reachable from other scripts")

	e := NewES6()
	e.TopLevel = true
	mangled, err := e.Minify(src, "a.js")
	require.NoError(t, err)
	assert.NotContains(t, string(mangled), "helper")
	assert.Contains(t, string(mangled), "console.log")
}
