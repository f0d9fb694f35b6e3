// Package assemble lays out the distributable build folder from already compiled assets.
package assemble

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/toastate/toastpipe/internal/fileset"
	"github.com/toastate/toastpipe/internal/fsutil"
	"github.com/toastate/toastpipe/internal/tlogger"
	"github.com/toastate/toastpipe/pkg/config"
)

// Copy is one source glob mirrored into a folder of the build.
type Copy struct {
	Name  string
	Files *fileset.Set
	Dest  string
}

type Assembler struct {
	root   string
	build  string
	copies []Copy
}

// New returns the assembler of the project at root. The build folder receives the pages
// under templates/, the minified styles under css/ and the minified scripts under js/.
func New(root string, paths config.Paths) *Assembler {
	build := fileset.Clean(paths.BuildFolder)
	cssFolder := fileset.Clean(paths.CSSFolder)
	jsFolder := fileset.Clean(paths.JSFolder)

	return &Assembler{
		root:  root,
		build: build,
		copies: []Copy{
			{Name: "templates", Files: fileset.New(root, paths.HTMLFiles), Dest: path.Join(build, "templates")},
			{Name: "css", Files: fileset.New(root, path.Join(cssFolder, "*.min.css")), Dest: path.Join(build, "css")},
			{Name: "js", Files: fileset.New(root, path.Join(jsFolder, "**/*.min.js")), Dest: path.Join(build, "js")},
		},
	}
}

// BuildFolder returns the build folder relative to the project root.
func (a *Assembler) BuildFolder() string {
	return a.build
}

func (a *Assembler) Copies() []Copy {
	return a.copies
}

// Clear removes the build folder. A missing folder is not an error.
func (a *Assembler) Clear(ctx context.Context) error {
	dir := filepath.Join(a.root, filepath.FromSlash(a.build))
	if err := fsutil.RemoveAll(dir); err != nil {
		tlogger.Error("task", "clear", "msg", "Failed to remove build folder", "path", dir, "err", err)
		return fmt.Errorf("clear %s: %w", a.build, err)
	}
	tlogger.Debug("task", "clear", "msg", "build folder removed", "path", dir)
	return nil
}

// Run copies one glob into its build subfolder, keeping paths relative to the glob base.
func (a *Assembler) Run(ctx context.Context, c Copy) (int, error) {
	list, err := c.Files.Files()
	if err != nil {
		return 0, err
	}

	n := 0
	for _, f := range list {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		dst := filepath.Join(a.root, filepath.FromSlash(path.Join(c.Dest, f.Rel())))
		if _, err := fsutil.CopyFile(c.Files.Abs(f), dst); err != nil {
			tlogger.Error("task", c.Name, "msg", "Failed to copy file", "file", f.Path, "err", err)
			return n, &fsutil.FileError{File: f.Path, Err: err}
		}
		n++
	}
	tlogger.Debug("task", c.Name, "msg", "copied", "files", n, "dest", c.Dest)
	return n, nil
}
