package styles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bep/golibsass/libsass"
)

// Compiled is the raw compiler output, before any plugin ran.
type Compiled struct {
	CSS       []byte
	SourceMap []byte
}

type CompileOptions struct {
	// OutputName is the file name the CSS will be written under, used to link the source map.
	OutputName string
	SourceMap  bool
}

type Compiler interface {
	Compile(ctx context.Context, entry string, opts CompileOptions) (*Compiled, error)
}

var ErrCompile = errors.New("style compilation failed")

// CompileError carries the entry file that failed to compile.
type CompileError struct {
	File string
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *CompileError) Unwrap() []error {
	return []error{ErrCompile, e.Err}
}

// LibSass compiles SCSS with libsass. Partials are resolved from the entry folder first,
// then from IncludePaths.
type LibSass struct {
	IncludePaths []string
}

func (l *LibSass) Compile(ctx context.Context, entry string, opts CompileOptions) (*Compiled, error) {
	src, err := os.ReadFile(entry)
	if err != nil {
		return nil, err
	}

	options := libsass.Options{
		OutputStyle:  libsass.ExpandedStyle,
		IncludePaths: append([]string{filepath.Dir(entry)}, l.IncludePaths...),
	}
	if opts.SourceMap {
		options.SourceMapOptions = libsass.SourceMapOptions{
			Filename:   opts.OutputName + ".map",
			OutputPath: opts.OutputName,
			InputPath:  entry,
			Contents:   true,
		}
	}

	transpiler, err := libsass.New(options)
	if err != nil {
		return nil, &CompileError{File: entry, Err: err}
	}

	res, err := transpiler.Execute(string(src))
	if err != nil {
		return nil, &CompileError{File: entry, Err: err}
	}

	return &Compiled{
		CSS:       []byte(res.CSS),
		SourceMap: []byte(res.SourceMapContent),
	}, nil
}
