// Package server exposes the development server to programs embedding the pipeline.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/toastate/toastpipe/internal/server"
	"github.com/toastate/toastpipe/pkg/config"
)

type Server interface {
	Addr() string
	Reload()
	InjectCSS(path string)
	Wait() error
}

// Start serves rootDir with the serve settings of cfg until ctx is done. The build folder
// is never watched.
func Start(ctx context.Context, rootDir string, cfg *config.Configuration) (Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfiguration()
	}
	h, err := server.Start(ctx, server.Options{
		Root:       rootDir,
		Addr:       fmt.Sprintf(":%d", cfg.ServeConfig.Port),
		WatchDelay: time.Duration(cfg.ServeConfig.WatchDelayMS) * time.Millisecond,
		Ignore:     []string{cfg.Paths.BuildFolder},
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}
