package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/squeeze/notify"
)

var (
	// Ask for every notification instead of subscribing to categories
	listenAll bool

	// The categories to subscribe to
	listenCategories []string
)

func init() {
	flags := ListenCmd.Flags()

	flags.BoolVar(&listenAll, "all", false, "Print every notification the server sends")
	flags.StringSliceVarP(&listenCategories, "category", "c",
		[]string{notify.PlaylistAll, notify.MixerAll, notify.ClientAll},
		"The notification categories to subscribe to")
}

var ListenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print the notifications the media server sends",
	Long: `Print the notifications the media server sends

Keeps a connection to the server open, reconnecting when it goes away,
and prints one line per notification until interrupted.

Usage
	squeeze listen --category playlist,mixer
	squeeze listen --all

`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		out := cmd.OutOrStdout()
		show := func(ev notify.Event) {
			if ev.Synthetic {
				log.Info("Connection changed", zap.String("event", ev.Line))
				return
			}

			fmt.Fprintln(out, ev.Line)
		}

		registry := notify.NewRegistry()
		registry.Add(notify.ServerConnect, show)
		registry.Add(notify.ServerError, show)

		if listenAll {
			// Every line contains the empty key.
			registry.Add("", show)
		} else {
			registry.AddAll(listenCategories, show)
		}

		sub := notify.NewSubscriber(endpoint, registry, notify.Options{
			RetryDelay: conf.RetryDelay,
			ListenAll:  listenAll,
			Log:        log.Named("notify"),
		})

		return sub.Run(ctx)
	},
}
