// Package styles compiles the SCSS entry point and runs the CSS post-processing chain.
package styles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/toastate/toastpipe/internal/fileset"
	"github.com/toastate/toastpipe/internal/fsutil"
	"github.com/toastate/toastpipe/internal/tlogger"
	"github.com/toastate/toastpipe/pkg/config"
)

type Variant int

const (
	Expanded Variant = iota
	Minified
	Development
)

func (v Variant) String() string {
	switch v {
	case Expanded:
		return "expanded"
	case Minified:
		return "minified"
	case Development:
		return "development"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

var ErrNoEntry = errors.New("style entry file not found")

// Result lists the files a run wrote, slash separated and relative to the project root.
type Result struct {
	Variant Variant
	CSS     string
	Map     string
}

type Pipeline struct {
	root       string
	paths      config.Paths
	compiler   Compiler
	shared     Chain
	compressor Plugin
}

func NewPipeline(root string, paths config.Paths, compiler Compiler, shared Chain) *Pipeline {
	return &Pipeline{
		root:       root,
		paths:      paths,
		compiler:   compiler,
		shared:     shared,
		compressor: NewCompressor(),
	}
}

// Chain returns the post-processing steps of a variant. The minified chain is the shared
// chain plus compression, the development variant has none.
func (p *Pipeline) Chain(v Variant) Chain {
	switch v {
	case Expanded:
		return p.shared
	case Minified:
		return p.shared.With(p.compressor)
	}
	return nil
}

// OutputName returns the file name a variant writes, "style.css" or "style.min.css".
func (p *Pipeline) OutputName(v Variant) string {
	base := path.Base(fileset.Clean(p.paths.ScssFile))
	name := strings.TrimSuffix(base, path.Ext(base))
	if v == Minified {
		name += ".min"
	}
	return name + ".css"
}

// Run compiles the entry file once for variant v. Nothing is written when compilation
// or a plugin fails.
func (p *Pipeline) Run(ctx context.Context, v Variant) (*Result, error) {
	entry := filepath.Join(p.root, filepath.FromSlash(fileset.Clean(p.paths.ScssFile)))
	if _, err := os.Stat(entry); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEntry, entry)
	}

	name := p.OutputName(v)
	tlogger.Debug("styles", v, "msg", "compiling", "file", entry)

	compiled, err := p.compiler.Compile(ctx, entry, CompileOptions{
		OutputName: name,
		SourceMap:  v == Development,
	})
	if err != nil {
		return nil, err
	}

	out, err := p.Chain(v).Apply(compiled.CSS)
	if err != nil {
		return nil, fmt.Errorf("post-processing %s: %w", entry, err)
	}

	cssFolder := fileset.Clean(p.paths.CSSFolder)
	res := &Result{Variant: v, CSS: path.Join(cssFolder, name)}

	err = fsutil.WriteFile(filepath.Join(p.root, filepath.FromSlash(res.CSS)), out)
	if err != nil {
		return nil, err
	}

	if v == Development && len(compiled.SourceMap) > 0 {
		res.Map = res.CSS + ".map"
		err = fsutil.WriteFile(filepath.Join(p.root, filepath.FromSlash(res.Map)), compiled.SourceMap)
		if err != nil {
			return nil, err
		}
	}

	tlogger.Debug("styles", v, "msg", "written", "file", res.CSS, "bytes", len(out))
	return res, nil
}
