package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/luma/squeeze/lms"
)

var ErrUnknownAction = errors.New("unknown action")

type playerAction func(player *lms.Player, ctx context.Context) error

var playerActions = map[string]playerAction{
	"play":    (*lms.Player).Play,
	"stop":    (*lms.Player).Stop,
	"pause":   (*lms.Player).Pause,
	"unpause": (*lms.Player).Unpause,
	"toggle":  (*lms.Player).Toggle,
	"next":    (*lms.Player).Next,
	"prev":    (*lms.Player).Prev,
}

func actionNames() []string {
	names := make([]string, 0, len(playerActions))
	for name := range playerActions {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func runAction(ctx context.Context, player *lms.Player, name string) error {
	action, ok := playerActions[name]
	if !ok {
		return fmt.Errorf("%w '%s', expected one of %s", ErrUnknownAction, name, strings.Join(actionNames(), ", "))
	}

	return action(player, ctx)
}

// changeVolume applies a volume given as an absolute level or as a +N/-N
// step.
func changeVolume(ctx context.Context, player *lms.Player, level string) error {
	level = strings.TrimSpace(level)

	switch {
	case strings.HasPrefix(level, "+"):
		step, err := strconv.Atoi(level[1:])
		if err != nil {
			return fmt.Errorf("%w: '%s'", lms.ErrInvalidVolume, level)
		}

		return player.VolumeUp(ctx, step)

	case strings.HasPrefix(level, "-"):
		step, err := strconv.Atoi(level[1:])
		if err != nil {
			return fmt.Errorf("%w: '%s'", lms.ErrInvalidVolume, level)
		}

		return player.VolumeDown(ctx, step)

	default:
		return player.SetVolumeString(ctx, level)
	}
}
