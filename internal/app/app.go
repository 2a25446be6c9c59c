// Package app runs one pipeline service as a long-lived process: it starts
// the HTTP surface and worker loops, flips the readiness probe, waits for
// SIGINT/SIGTERM and shuts everything down in order.
package app

import (
	"context"
	"sync"

	"github.com/skuwise/pricing-pipeline/pkg/healthprobe"
	"github.com/skuwise/pricing-pipeline/pkg/httpserver"
	"go.uber.org/zap"
)

// Runner is a long-running component loop. Run blocks until the context is
// cancelled or the component fails fatally; a non-context error from Run
// brings the whole process down with a non-zero exit.
type Runner interface {
	Name() string
	Run(ctx context.Context) error
}

// Closer is a component shut down after all runners have drained. Closers
// execute in the order given, so dependencies go last.
type Closer struct {
	Name  string
	Close func() error
}

// App orchestrates one service process.
type App struct {
	name          string
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	runners       []Runner
	closers       []Closer
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	errChan       chan error
}

// Options holds the components of one service.
type Options struct {
	Name          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	HTTPServer    *httpserver.Server // optional; pure workers have none
	Runners       []Runner
	Closers       []Closer
}

// New creates an App from the service's components.
func New(opts *Options) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		name:          opts.Name,
		logger:        opts.Logger,
		healthChecker: opts.HealthChecker,
		httpServer:    opts.HTTPServer,
		runners:       opts.Runners,
		closers:       opts.Closers,
		ctx:           ctx,
		cancel:        cancel,
		errChan:       make(chan error, len(opts.Runners)+1),
	}
}
