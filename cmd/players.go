package cmd

import (
	"context"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/luma/squeeze/lms"
)

var PlayersCmd = &cobra.Command{
	Use:   "players",
	Short: "List the players connected to the media server",
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

		server := lms.NewServer(conn, log.Named("lms"))

		players, err := server.Players(ctx)
		if err != nil {
			return err
		}

		tw := tablewriter.NewWriter(cmd.OutOrStdout())
		tw.SetHeader([]string{"Ref", "Name", "Mode", "Volume", "Signal", "Synced with"})
		tw.SetBorder(true)
		tw.SetAutoWrapText(false)

		groups := server.SyncGroups(ctx)

		for _, p := range players {
			tw.Append(playerRow(ctx, p, groups))
		}

		tw.Render()

		return nil
	},
}

func playerRow(ctx context.Context, p *lms.Player, groups []lms.SyncGroup) []string {
	signal := "-"
	if s := p.SignalStrength(ctx); s > 0 {
		signal = strconv.Itoa(s) + "%"
	}

	return []string{
		p.Ref(),
		p.Name(),
		p.Mode(ctx),
		strconv.Itoa(p.Volume(ctx)),
		signal,
		strings.Join(syncedWith(p, groups), ", "),
	}
}

// syncedWith returns the names of the other players in p's sync group.
func syncedWith(p *lms.Player, groups []lms.SyncGroup) []string {
	for _, g := range groups {
		if !g.Contains(p.Ref()) {
			continue
		}

		var others []string
		for i, ref := range g.Members {
			if ref == p.Ref() {
				continue
			}

			name := ref
			if i < len(g.Names) {
				name = g.Names[i]
			}

			others = append(others, name)
		}

		return others
	}

	return nil
}
