package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/squeeze/client"
	"github.com/luma/squeeze/cmd/gen"
	"github.com/luma/squeeze/internal/env"
)

var (
	// The server to talk to, overrides SQUEEZE_HOST
	serverHost string

	// The CLI port of the server, overrides SQUEEZE_PORT
	serverPort int
)

var RootCmd = &cobra.Command{
	Use:   "squeeze",
	Short: "Control a Logitech Media Server over its CLI port",
	Long: `Control a Logitech Media Server over its CLI port

The server is configured with SQUEEZE_* environment variables, or a
.env.local file, and the --server and --port flags.`,
	SilenceUsage: true,
}

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringVarP(&serverHost, "server", "s", "", "The host of the media server")
	flags.IntVarP(&serverPort, "port", "p", 0, "The CLI port of the media server")

	RootCmd.AddCommand(
		BridgeCmd,
		ListenCmd,
		PlayersCmd,
		VolumeCmd,
		ControlCmd,
		SimulateCmd,
		VersionCmd,
		gen.RootCmd,
	)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config, applies the flags on top of it and builds the
// logger every command uses.
func setup(ctx context.Context) (*env.Config, *zap.Logger, error) {
	conf, err := env.LoadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	if serverHost != "" {
		conf.Host = serverHost
	}

	if serverPort != 0 {
		conf.Port = serverPort
	}

	log, err := env.MakeLogger(conf.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	return conf, log, nil
}

// openConn opens, and logs in, a command connection to the configured
// server.
func openConn(ctx context.Context, endpoint client.Endpoint, log *zap.Logger) (*client.Conn, error) {
	if err := endpoint.Validate(); err != nil {
		return nil, err
	}

	conn := client.NewConn(endpoint, client.Options{
		Redial: true,
		Log:    log.Named("conn"),
	})

	if err := conn.Open(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}
