package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/apollo-chat/apollo/internal/logging"
	"github.com/apollo-chat/apollo/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the headless HTTP server",
	Long: `Start apollo as a headless server exposing the session and
tool-provider APIs over HTTP, with live events on /event.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "listen", "", "Bind address (host:port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, "")
	if err != nil {
		return err
	}
	defer a.close()

	a.connectProviders(ctx)

	serverConfig := server.DefaultConfig()
	if serveAddr != "" {
		serverConfig.Addr = serveAddr
	} else if a.cfg.Listen != "" {
		serverConfig.Addr = a.cfg.Listen
	}

	srv := server.New(serverConfig, a.sessions, a.manager, a.cache, a.bus)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", serverConfig.Addr).Str("version", Version).Msg("server listening")
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logging.Info().Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}
