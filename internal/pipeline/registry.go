// Package pipeline binds the project tasks to names that can be invoked from the command line.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/toastate/toastpipe/internal/assemble"
	"github.com/toastate/toastpipe/internal/csscomb"
	"github.com/toastate/toastpipe/internal/fileset"
	"github.com/toastate/toastpipe/internal/fsutil"
	"github.com/toastate/toastpipe/internal/metrics"
	"github.com/toastate/toastpipe/internal/scripts"
	"github.com/toastate/toastpipe/internal/server"
	"github.com/toastate/toastpipe/internal/styles"
	"github.com/toastate/toastpipe/internal/task"
	"github.com/toastate/toastpipe/internal/tlogger"
	"github.com/toastate/toastpipe/pkg/config"
)

var ErrUnknownTask = errors.New("unknown task")

// Reloader pushes changes to connected browsers.
type Reloader interface {
	Reload()
	InjectCSS(path string)
}

type Options struct {
	// Compiler defaults to libsass with the style folder as include path.
	Compiler styles.Compiler
	// Addr overrides the dev server listen address built from the configured port.
	Addr    string
	Metrics *metrics.Recorder
}

type entry struct {
	task        *task.Task
	description string
}

type Registry struct {
	root      string
	cfg       *config.Configuration
	opts      Options
	exec      *task.Executor
	styles    *styles.Pipeline
	assembler *assemble.Assembler

	names   []string
	entries map[string]entry

	mu       sync.RWMutex
	reloader Reloader
}

// New registers every task of the project found at root.
func New(root string, cfg *config.Configuration, opts Options) *Registry {
	if opts.Compiler == nil {
		opts.Compiler = &styles.LibSass{
			IncludePaths: []string{filepath.Join(root, filepath.FromSlash(fileset.Clean(cfg.Paths.ScssFolder)))},
		}
	}

	r := &Registry{
		root:      root,
		cfg:       cfg,
		opts:      opts,
		exec:      task.NewExecutor(opts.Metrics),
		styles:    styles.NewPipeline(root, cfg.Paths, opts.Compiler, styles.DefaultChain(cfg.Prefixer.Cascade)),
		assembler: assemble.New(root, cfg.Paths),
		entries:   map[string]entry{},
	}

	minified := r.styleTask("min", styles.Minified, "SCSS --> .min.css Compiled")
	uglify := r.minifyTask("uglify", scripts.NewUglify())
	build := r.buildTask()

	r.register("Compile the styles, expanded then minified.",
		task.Series("scss", r.styleTask("scss:expanded", styles.Expanded, "SCSS --> CSS Compiled"), minified))
	r.register("Compile the minified styles.", minified)
	r.register("Compile the styles with a source map, without post-processing.",
		r.styleTask("dev", styles.Development, "SCSS in DEV mode"))
	r.register("Format every style source in place.", task.Func("comb", r.comb))
	r.register("Bundle the scripts into a single file.", task.Func("concat", r.concat))
	r.register("Minify every script.", uglify)
	r.register("Minify every script, accepting modern syntax.", r.minifyTask("es6", r.es6()))
	r.register("Clear the build folder, then copy pages, minified styles and minified scripts into it.", build)
	r.register("Minify styles and scripts, then build.",
		task.Series("release", task.Parallel("compile", minified, uglify), build))
	r.register("Serve the project with live reload until interrupted.", task.Func("watch", r.watch))

	return r
}

func (r *Registry) register(description string, t *task.Task) {
	r.names = append(r.names, t.Name)
	r.entries[t.Name] = entry{task: t, description: description}
}

// Names lists the tasks in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Registry) Describe(name string) (string, error) {
	e, ok := r.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return e.description, nil
}

// Task returns the description tree of a task.
func (r *Registry) Task(name string) (*task.Task, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return e.task, nil
}

// Invoke runs a task to completion.
func (r *Registry) Invoke(ctx context.Context, name string) error {
	t, err := r.Task(name)
	if err != nil {
		return err
	}
	return r.exec.Run(ctx, t)
}

// Attach makes style runs push their output to rl. A nil rl detaches.
func (r *Registry) Attach(rl Reloader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloader = rl
}

func (r *Registry) attached() Reloader {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reloader
}

func (r *Registry) styleTask(name string, v styles.Variant, notification string) *task.Task {
	return task.Func(name, func(ctx context.Context) error {
		res, err := r.styles.Run(ctx, v)
		if err != nil {
			return err
		}
		tlogger.Notify(notification, "file", res.CSS)
		if rl := r.attached(); rl != nil {
			rl.InjectCSS(res.CSS)
		}
		return nil
	})
}

func (r *Registry) scriptFiles() *fileset.Set {
	return fileset.New(r.root, r.cfg.Paths.JSFiles...)
}

func (r *Registry) comb(ctx context.Context) error {
	changed, err := csscomb.Comb(ctx, fileset.New(r.root, r.cfg.Paths.ScssFiles))
	for _, e := range flatten(err) {
		var fe *fsutil.FileError
		if errors.As(e, &fe) {
			tlogger.Notify(e.Error())
		}
	}
	tlogger.Info("task", "comb", "msg", "formatted", "files", len(changed))
	return err
}

func (r *Registry) concat(ctx context.Context) error {
	out, err := scripts.Bundle(ctx, r.scriptFiles(), r.cfg.Paths.JSFolder, r.cfg.Paths.JSBundleName)
	if err != nil {
		return err
	}
	if out != "" {
		tlogger.Info("task", "concat", "msg", "bundle written", "file", out)
	}
	return nil
}

func (r *Registry) minifyTask(name string, engine scripts.Engine) *task.Task {
	return task.Func(name, func(ctx context.Context) error {
		written, err := scripts.MinifyEach(ctx, r.scriptFiles(), r.cfg.Paths.JSFolder, engine)
		tlogger.Info("task", name, "msg", "minified", "files", len(written))
		return err
	})
}

func (r *Registry) es6() *scripts.ES6 {
	e := scripts.NewES6()
	e.TopLevel = r.cfg.Scripts.MangleTopLevel
	return e
}

func (r *Registry) buildTask() *task.Task {
	var copies []*task.Task
	for _, c := range r.assembler.Copies() {
		c := c
		copies = append(copies, task.Func("build:"+c.Name, func(ctx context.Context) error {
			_, err := r.assembler.Run(ctx, c)
			return err
		}))
	}
	return task.Series("build",
		task.Func("clear", r.assembler.Clear),
		task.Parallel("copy", copies...),
	)
}

// watch serves the project until ctx is done. Style changes recompile the expanded
// variant and stream it, page and script changes reload the browsers.
func (r *Registry) watch(ctx context.Context) error {
	addr := r.opts.Addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", r.cfg.ServeConfig.Port)
	}

	h, err := server.Start(ctx, server.Options{
		Root:       r.root,
		Addr:       addr,
		WatchDelay: time.Duration(r.cfg.ServeConfig.WatchDelayMS) * time.Millisecond,
		Ignore:     []string{r.assembler.BuildFolder()},
		Metrics:    r.opts.Metrics,
	})
	if err != nil {
		return err
	}
	r.Attach(h)
	defer r.Attach(nil)

	for _, b := range r.bindings(h) {
		h.Watch(b)
	}
	return h.Wait()
}

func (r *Registry) bindings(rl Reloader) []server.Binding {
	compile := r.styleTask("scss:expanded", styles.Expanded, "SCSS --> CSS Compiled")
	reload := func(ctx context.Context, rel string) {
		rl.Reload()
	}

	return []server.Binding{
		{
			Name:  "styles",
			Files: fileset.New(r.root, r.cfg.Paths.ScssFiles),
			React: func(ctx context.Context, rel string) {
				r.exec.Guard(ctx, compile)
			},
		},
		{Name: "html", Files: fileset.New(r.root, r.cfg.Paths.HTMLFiles), React: reload},
		{Name: "scripts", Files: r.scriptFiles(), React: reload},
	}
}

func flatten(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
