package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luma/squeeze/lms"
)

var VolumeCmd = &cobra.Command{
	Use:   "volume <player> [level|+step|-step]",
	Short: "Show or change the volume of a player",
	Long: `Show or change the volume of a player

Without a level the current volume is printed. Levels are clamped to
0-100, +step and -step move the volume relative to where it is.

Usage
	squeeze volume 00:04:20:12:34:56
	squeeze volume 00:04:20:12:34:56 40
	squeeze volume 00:04:20:12:34:56 +5

`,
	Args: cobra.RangeArgs(1, 2),
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

		if len(args) == 2 {
			if err := changeVolume(ctx, player, args[1]); err != nil {
				return err
			}
		}

		volume := player.Volume(ctx)
		if volume < 0 {
			return fmt.Errorf("failed to get the volume of %s", args[0])
		}

		fmt.Fprintln(cmd.OutOrStdout(), volume)

		return nil
	},
}
