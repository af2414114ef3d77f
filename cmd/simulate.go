package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/squeeze/transport"
)

var (
	// The host to listen for CLI clients on
	simHost string

	// The port to listen for CLI clients on
	simPort int

	// Whether to bind with SO_REUSEPORT
	simReuseport bool

	// How many listeners to bind, only with --reuseport
	simListeners int
)

func init() {
	flags := SimulateCmd.Flags()

	flags.StringVarP(&simHost, "host", "a", "0.0.0.0", "The host to listen on")
	flags.IntVar(&simPort, "listen-port", 9090, "The port to listen for client connections on")
	flags.BoolVar(&simReuseport, "reuseport", false, "Bind with SO_REUSEPORT")
	flags.IntVar(&simListeners, "listeners", 1, "The number of listeners to bind, needs --reuseport")
}

var SimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated media server",
	Long: `Run a simulated media server

Answers the CLI commands squeeze needs for two players with a short
playlist each, and broadcasts notifications when they change. The
credentials from SQUEEZE_USERNAME and SQUEEZE_PASSWORD are required when
set.

Usage
	squeeze simulate --listen-port 9090

`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, log, err := setup(ctx)
		if err != nil {
			return err
		}

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		sim := transport.NewSimulator(transport.SimulatorOptions{
			Username: conf.Username,
			Password: conf.Password,
			Log:      log.Named("simulator"),
		})

		for _, p := range demoPlayers() {
			sim.AddPlayer(p)
		}

		server, err := transport.NewSimulatorServer(ctx, sim, transport.Options{
			Host:         simHost,
			Port:         simPort,
			Reuseport:    simReuseport,
			NumListeners: simListeners,
			Log:          log.Named("transport"),
		})
		if err != nil {
			return err
		}

		addr, err := server.Addr()
		if err != nil {
			return err
		}

		log.Info("Listening", zap.Stringer("addr", addr))

		<-ctx.Done()

		signalStop()
		log.Info("Shutting down")

		if err := server.Close(); err != nil {
			log.Error("TCP server forced to shutdown", zap.Error(err))
		}

		log.Info("Exiting", zap.Int64("accepted", server.Accepted()))
		return nil
	},
}

func demoPlayers() []transport.SimPlayer {
	return []transport.SimPlayer{
		{
			Ref:            "00:04:20:12:34:56",
			Name:           "Kitchen",
			Volume:         40,
			Mode:           "play",
			Elapsed:        42,
			SignalStrength: 78,
			Playlist: []transport.SimTrack{
				{ID: "101", Title: "So What", Artist: "Miles Davis", Album: "Kind of Blue", Duration: 562, CoverID: "a1b2c3"},
				{ID: "102", Title: "Freddie Freeloader", Artist: "Miles Davis", Album: "Kind of Blue", Duration: 589, CoverID: "a1b2c3"},
				{ID: "103", Title: "Blue in Green", Artist: "Miles Davis", Album: "Kind of Blue", Duration: 337, CoverID: "a1b2c3"},
			},
		},
		{
			Ref:    "bb:bb:bb:cc:cc:cc",
			Name:   "Living Room",
			Volume: 25,
			Playlist: []transport.SimTrack{
				{ID: "-94392624", Title: "Radio Paradise", Remote: true, ArtworkURL: "/imageproxy/radio/image.png"},
			},
		},
	}
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
