// Package task describes named units of work and the way they compose.
package task

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/toastate/toastpipe/internal/metrics"
	"github.com/toastate/toastpipe/internal/tlogger"
)

type Kind int

const (
	KindLeaf Kind = iota
	KindSeries
	KindParallel
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindSeries:
		return "series"
	case KindParallel:
		return "parallel"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	ErrPanic  = errors.New("task panicked")
	ErrNoWork = errors.New("task has no function")
)

type Fn func(ctx context.Context) error

// Task is a leaf function or a composition of child tasks.
type Task struct {
	Name     string
	Kind     Kind
	Fn       Fn
	Children []*Task
}

func Func(name string, fn Fn) *Task {
	return &Task{Name: name, Kind: KindLeaf, Fn: fn}
}

// Series runs children one after the other, each fully completed before the next starts.
func Series(name string, children ...*Task) *Task {
	return &Task{Name: name, Kind: KindSeries, Children: children}
}

// Parallel runs children concurrently and completes when all of them have completed.
func Parallel(name string, children ...*Task) *Task {
	return &Task{Name: name, Kind: KindParallel, Children: children}
}

// Executor runs task trees, logging every task start and finish.
type Executor struct {
	metrics *metrics.Recorder
}

// NewExecutor returns an executor. rec may be nil.
func NewExecutor(rec *metrics.Recorder) *Executor {
	return &Executor{metrics: rec}
}

// Run executes t. A series stops at its first failing child. A parallel group waits for
// every child and returns their joined errors.
func (e *Executor) Run(ctx context.Context, t *Task) error {
	start := time.Now()
	tlogger.Info("task", t.Name, "msg", "Starting")

	var err error
	switch t.Kind {
	case KindLeaf:
		err = e.call(ctx, t)
	case KindSeries:
		for _, c := range t.Children {
			if err = e.Run(ctx, c); err != nil {
				break
			}
		}
	case KindParallel:
		errs := make([]error, len(t.Children))
		var g errgroup.Group
		for i, c := range t.Children {
			i, c := i, c
			g.Go(func() error {
				errs[i] = e.Run(ctx, c)
				return nil
			})
		}
		g.Wait()
		err = errors.Join(errs...)
	default:
		err = fmt.Errorf("task %s: unknown %s", t.Name, t.Kind)
	}

	d := time.Since(start)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailed
		if errors.Is(err, ErrPanic) {
			result = metrics.ResultPanic
		}
		tlogger.Error("task", t.Name, "msg", "Errored after", "duration", d, "err", err)
	} else {
		tlogger.Info("task", t.Name, "msg", "Finished after", "duration", d)
	}
	e.metrics.ObserveTask(t.Name, d, result)
	return err
}

func (e *Executor) call(ctx context.Context, t *Task) (err error) {
	if t.Fn == nil {
		return fmt.Errorf("%s: %w", t.Name, ErrNoWork)
	}
	defer func() {
		if r := recover(); r != nil {
			tlogger.Error("task", t.Name, "msg", "panic", "stack", string(debug.Stack()))
			err = fmt.Errorf("%s: %w: %v", t.Name, ErrPanic, r)
		}
	}()
	return t.Fn(ctx)
}

// Guard runs t and reports a failure instead of returning it. Long running callers such as
// the watcher use it so that one broken run never stops the process.
func (e *Executor) Guard(ctx context.Context, t *Task) {
	if err := e.Run(ctx, t); err != nil {
		tlogger.Warn("task", t.Name, "msg", "failure reported, continuing")
	}
}
