package scripts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
	"github.com/toastate/toastpipe/internal/fileset"
	"github.com/toastate/toastpipe/internal/fsutil"
	"github.com/toastate/toastpipe/internal/tlogger"
)

const jsMime = "application/javascript"

// Engine minifies a single script.
type Engine interface {
	Name() string
	Minify(src []byte, filename string) ([]byte, error)
}

// Uglify minifies with the tdewolff js minifier. It renames local bindings only.
type Uglify struct {
	m *minify.M
}

func NewUglify() *Uglify {
	m := minify.New()
	m.Add(jsMime, &js.Minifier{})
	return &Uglify{m: m}
}

func (u *Uglify) Name() string { return "uglify" }

func (u *Uglify) Minify(src []byte, filename string) ([]byte, error) {
	out, err := u.m.Bytes(jsMime, src)
	if err != nil {
		return nil, fmt.Errorf("minify %s: %w", filename, err)
	}
	return out, nil
}

// ES6 minifies with esbuild, which accepts any modern syntax and keeps it as is.
// Top-level names stay global unless TopLevel is set, in which case each file is treated
// as a module and its top-level bindings are renamed too.
type ES6 struct {
	Target   api.Target
	TopLevel bool
}

func NewES6() *ES6 {
	return &ES6{Target: api.ESNext}
}

func (e *ES6) Name() string { return "es6" }

func (e *ES6) Minify(src []byte, filename string) ([]byte, error) {
	format := api.FormatDefault
	if e.TopLevel {
		format = api.FormatESModule
	}
	result := api.Transform(string(src), api.TransformOptions{
		Loader:            api.LoaderJS,
		Sourcefile:        filename,
		Target:            e.Target,
		Format:            format,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		Charset:           api.CharsetUTF8,
		LegalComments:     api.LegalCommentsNone,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msgs := api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		return nil, fmt.Errorf("minify %s: %s", filename, strings.TrimSpace(strings.Join(msgs, "")))
	}
	return []byte(strings.TrimRight(string(result.Code), "\n")), nil
}

// MinName returns the minified name of a script: a.js gives a.min.js.
func MinName(name string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + ".min" + ext
}

// MinifyEach writes a minified copy of every file of the set into folder, keeping the
// path relative to the glob base. A file that fails does not stop the others.
func MinifyEach(ctx context.Context, files *fileset.Set, folder string, engine Engine) ([]string, error) {
	list, err := files.Files()
	if err != nil {
		return nil, err
	}

	var written []string
	var errs []error
	for _, f := range list {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		src, err := os.ReadFile(files.Abs(f))
		if err != nil {
			errs = append(errs, &fsutil.FileError{File: f.Path, Err: err})
			continue
		}
		out, err := engine.Minify(src, f.Path)
		if err != nil {
			tlogger.Error("task", engine.Name(), "file", f.Path, "err", err)
			errs = append(errs, &fsutil.FileError{File: f.Path, Err: err})
			continue
		}

		dst := path.Join(fileset.Clean(folder), MinName(f.Rel()))
		if err := fsutil.WriteFile(filepath.Join(files.Root(), filepath.FromSlash(dst)), out); err != nil {
			errs = append(errs, &fsutil.FileError{File: f.Path, Err: err})
			continue
		}
		tlogger.Debug("task", engine.Name(), "msg", "minified", "file", f.Path, "dest", dst)
		written = append(written, dst)
	}

	return written, errors.Join(errs...)
}
