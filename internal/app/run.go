package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Run starts the service and blocks until shutdown. Returns nil on a clean
// signal-driven shutdown, the failing component's error otherwise.
func (a *App) Run() error {
	a.logger.Info("service-starting", zap.String("name", a.name))

	a.startComponents()

	a.healthChecker.SetReady(true)
	a.logger.Info("service-ready", zap.String("name", a.name))

	return a.waitForShutdown()
}

func (a *App) startComponents() {
	if a.httpServer != nil {
		a.wg.Add(1)
		go a.runHTTPServer()
	}

	for _, r := range a.runners {
		a.wg.Add(1)
		go a.runComponent(r)
	}
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()

	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
		a.errChan <- err
	}
}

func (a *App) runComponent(r Runner) {
	defer a.wg.Done()

	err := r.Run(a.ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("component-failed",
			zap.String("component", r.Name()),
			zap.Error(err))
		a.errChan <- err
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case runErr = <-a.errChan:
		a.logger.Error("fatal-component-error", zap.Error(runErr))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	shutdownErr := a.Shutdown()
	if runErr != nil {
		return runErr
	}

	return shutdownErr
}
