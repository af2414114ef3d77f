package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/squeeze/client"
	"github.com/luma/squeeze/lms"
	"github.com/luma/squeeze/notify"
	"github.com/luma/squeeze/storage"
	"github.com/luma/squeeze/tracker"
)

var (
	// The host to listen for http requests on
	httpHost string

	// The port to listen for http requests on
	httpPort string
)

func init() {
	flags := BridgeCmd.Flags()

	flags.StringVar(&httpPort, "http-port", "7362", "The port to listen to HTTP requests on")
	flags.StringVarP(&httpHost, "http-host", "a", "0.0.0.0", "The host to listen to HTTP requests on")
}

var BridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Serve what the media server is playing over HTTP",
	Long: `Serve what the media server is playing over HTTP

Follows the server's notifications and keeps a JSON document of the
selected player and its current and next track, for UIs that poll.

Usage
	squeeze bridge --http-port 7362

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, log, err := setup(ctx)
		if err != nil {
			return err
		}

		endpoint := conf.Endpoint()
		if err := endpoint.Validate(); err != nil {
			return err
		}

		conn := client.NewConn(endpoint, client.Options{
			Redial: true,
			Log:    log.Named("conn"),
		})

		if err := conn.Open(ctx); err != nil {
			if client.IsFatal(err) {
				return err
			}

			log.Warn("Server is not reachable yet", zap.String("addr", endpoint.Addr()), zap.Error(err))
		}

		store := storage.NewInmemoryStore(log.Named("storage"))
		go logUpdates(store, log.Named("updates"))

		server := lms.NewServer(conn, log.Named("lms"))
		track := tracker.New(tracker.Options{
			Server:  server,
			Store:   store,
			Artwork: tracker.NewServerArtwork(conf.Host, conf.WebPort),
			Log:     log.Named("tracker"),
		})

		registry := notify.NewRegistry()
		track.Register(registry)
		track.Init(ctx)

		sub := notify.NewSubscriber(endpoint, registry, notify.Options{
			RetryDelay: conf.RetryDelay,
			Log:        log.Named("notify"),
		})
		sub.Start(ctx)

		go track.Run(ctx)

		router := setupRouter(conf.DebugHTTP, log)
		newBridge(track, store).routes(router)

		s := &http.Server{
			Addr:    net.JoinHostPort(httpHost, httpPort),
			Handler: router,
		}

		// Initializing the server in a goroutine so that
		// it won't block the graceful shutdown handling below
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
			}
		}()

		log.Info("Listening",
			zap.String("server", endpoint.Addr()),
			zap.String("httpHost", httpHost),
			zap.String("httpPort", httpPort))

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		// The context is used to inform the server it has 5 seconds to finish
		// the request it is currently handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		sub.Stop()
		sub.Wait()

		if err := multierr.Combine(s.Shutdown(shutdownCtx), conn.Close(), store.Close()); err != nil {
			log.Error("Forced to shutdown", zap.Error(err))
		}

		log.Info("Exiting")
		return nil
	},
}

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Logs all requests, like a combined access and error log, in UTC.
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping", "/progress"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}

func logUpdates(store storage.Store, log *zap.Logger) {
	for update := range store.ListenToUpdates() {
		log.Debug("State changed",
			zap.String("path", update.Path),
			zap.ByteString("value", update.Value))
	}
}
