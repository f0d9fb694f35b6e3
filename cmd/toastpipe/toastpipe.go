package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/toastate/toastpipe/internal/metrics"
	"github.com/toastate/toastpipe/internal/pipeline"
	"github.com/toastate/toastpipe/internal/tlogger"
	"github.com/toastate/toastpipe/pkg/config"
)

var CLI struct {
	Scss    CommandTask  `cmd:"" help:"Compile the styles, expanded then minified."`
	Min     CommandTask  `cmd:"" help:"Compile the minified styles."`
	Dev     CommandTask  `cmd:"" help:"Compile the styles with a source map."`
	Comb    CommandTask  `cmd:"" help:"Format every style source in place."`
	Concat  CommandTask  `cmd:"" help:"Bundle the scripts into a single file."`
	Uglify  CommandTask  `cmd:"" help:"Minify every script."`
	ES6     CommandTask  `cmd:"" name:"es6" help:"Minify every script, accepting modern syntax."`
	Build   CommandTask  `cmd:"" aliases:"b" help:"Clear the build folder and copy the minified assets into it."`
	Release CommandTask  `cmd:"" help:"Minify styles and scripts, then build."`
	Watch   CommandWatch `cmd:"" aliases:"s" help:"Run a live dev server."`
	List    CommandList  `cmd:"" help:"List the available tasks."`

	Root       string `short:"r" default:"." type:"existingdir" help:"Project root."`
	ConfigFile string `short:"c" help:"configuration file path (optional)"`
	Verbose    int    `short:"v" help:"Print verbose output." type:"counter"`
}

// CommandTask runs the task named after the invoked command.
type CommandTask struct{}

type CommandWatch struct {
	Port int `short:"p" help:"Listener port"`
}

type CommandList struct{}

func main() {
	ctx := kong.Parse(&CLI, kong.UsageOnError())

	tlogger.ApplyVerbosity(CLI.Verbose)

	err := config.Init(CLI.Root, CLI.ConfigFile)
	if err != nil {
		tlogger.Error("msg", "Could not load configuration", "err", err)
		os.Exit(1)
	}

	err = ctx.Run(ctx)
	if err != nil {
		os.Exit(1)
	}
}

func newRegistry(opts pipeline.Options) *pipeline.Registry {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRecorder(prom.NewRegistry())
	}
	return pipeline.New(CLI.Root, config.Config, opts)
}

func invoke(reg *pipeline.Registry, name string) error {
	sigctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return reg.Invoke(sigctx, name)
}

func (r *CommandTask) Run(ctx *kong.Context) error {
	return invoke(newRegistry(pipeline.Options{}), ctx.Selected().Name)
}

func (r *CommandWatch) Run(ctx *kong.Context) error {
	port := config.Config.ServeConfig.Port
	if r.Port > 0 {
		port = r.Port
	}
	return invoke(newRegistry(pipeline.Options{Addr: fmt.Sprintf(":%d", port)}), "watch")
}

func (r *CommandList) Run(ctx *kong.Context) error {
	reg := newRegistry(pipeline.Options{})
	w := tabwriter.NewWriter(ctx.Stdout, 0, 4, 2, ' ', 0)
	for _, name := range reg.Names() {
		desc, err := reg.Describe(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", name, desc)
	}
	return w.Flush()
}
