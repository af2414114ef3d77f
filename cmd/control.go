package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/luma/squeeze/lms"
)

var ControlCmd = &cobra.Command{
	Use:   "control <player> <action>",
	Short: "Play, pause, stop or skip on a player",
	Long: `Play, pause, stop or skip on a player

Actions: ` + strings.Join(actionNames(), ", ") + `

Usage
	squeeze control 00:04:20:12:34:56 toggle

`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		conf, log, err := setup(ctx)
		if err != nil {
			return err
		}

		conn, err := openConn(ctx, conf.Endpoint(), log)
		if err != nil {
			return err
		}
		defer conn.Close()

		player := lms.NewServer(conn, log.Named("lms")).Player(args[0])

		return runAction(ctx, player, args[1])
	},
}
