package sigproc

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utrading/utrading-signal-gateway/pkg/goplus"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

type HandlerFunc func(os.Signal)

// GracefulShutdown 收到退出信号后执行 shutdown，最多等待 timeout 后退出进程
func GracefulShutdown(timeout time.Duration, shutdown HandlerFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	goplus.Go(func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")

		done := make(chan struct{})
		goplus.Go(func() {
			defer close(done)
			shutdown(sig)
		})

		select {
		case <-done:
			logger.Info().Msg("shutdown complete")
		case <-time.After(timeout):
			logger.Warn().Dur("timeout", timeout).Msg("shutdown timeout, forcing exit")
		}

		logger.Close()
		os.Exit(0)
	})
}
