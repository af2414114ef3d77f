package protocol

import (
	"strings"
)

// EventLine is a decoded notification line.
type EventLine struct {
	// Raw is the line as received, still escaped.
	Raw string

	// Line is Raw with every token unescaped.
	Line string

	Category string
	Player   string
	Args     []string
}

// ParseEvent decodes a notification broadcast by the server.
//
// Player notifications are sent as `<player> <category> <detail...>` while
// server notifications (e.g. `rescan done`) have no player. A token is taken
// to be the player when it looks like a player reference, either before or
// after the category.
func ParseEvent(raw string) (EventLine, error) {
	fields := Fields(raw)
	if len(fields) == 0 {
		return EventLine{}, &DecodeError{Token: raw, Cause: ErrEmptyLine}
	}

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		t, err := Unescape(f)
		if err != nil {
			return EventLine{}, err
		}

		tokens = append(tokens, t)
	}

	ev := EventLine{Raw: raw, Line: strings.Join(tokens, " ")}

	switch {
	case LooksLikePlayer(tokens[0]):
		ev.Player = tokens[0]
		tokens = tokens[1:]

		if len(tokens) > 0 {
			ev.Category = tokens[0]
			ev.Args = tokens[1:]
		}

	case len(tokens) > 1 && LooksLikePlayer(tokens[1]):
		ev.Category = tokens[0]
		ev.Player = tokens[1]
		ev.Args = tokens[2:]

	default:
		ev.Category = tokens[0]
		ev.Args = tokens[1:]
	}

	return ev, nil
}

// LooksLikePlayer reports whether s could be a player reference. Players
// are identified by their MAC address, or by an IP address for software
// players without one.
func LooksLikePlayer(s string) bool {
	if len(s) < 7 {
		return false
	}

	return strings.Count(s, ":") == 5 || strings.Count(s, ".") == 3
}
