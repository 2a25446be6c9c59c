package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Shutdown stops the service: readiness off, worker contexts cancelled,
// HTTP drained, then closers in order once all goroutines have returned.
func (a *App) Shutdown() error {
	a.logger.Info("service-shutting-down", zap.String("name", a.name))

	a.healthChecker.SetReady(false)
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if a.httpServer != nil {
		err := a.httpServer.Shutdown(shutdownCtx)
		if err != nil {
			a.logger.Error("http-server-shutdown-error", zap.Error(err))
		}
	}

	a.wg.Wait()

	for _, c := range a.closers {
		err := c.Close()
		if err != nil {
			a.logger.Error("component-close-error",
				zap.String("component", c.Name),
				zap.Error(err))
		}
	}

	a.logger.Info("service-shutdown-complete", zap.String("name", a.name))

	return nil
}
