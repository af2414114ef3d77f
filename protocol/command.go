package protocol

import (
	"strings"
)

// Query is the placeholder a client sends in place of the value it wants.
const Query = "?"

// StructuredVerbs are the commands that reply with a list of tagged results
// rather than a single value. The server echoes the complete command for
// these, including a trailing `?`.
var StructuredVerbs = map[string]struct{}{
	"status":         {},
	"songinfo":       {},
	"trackstat":      {},
	"albums":         {},
	"songs":          {},
	"artists":        {},
	"genres":         {},
	"players":        {},
	"syncgroups":     {},
	"serverstatus":   {},
	"rescan":         {},
	"rescanprogress": {},
}

// IsStructured reports whether verb replies with tagged results.
func IsStructured(verb string) bool {
	_, ok := StructuredVerbs[verb]
	return ok
}

// Arg is a single command argument. Args with an empty Key are positional.
// Placeholder args stand for the value asked for and go out as a bare `?`.
type Arg struct {
	Key         string
	Value       string
	Placeholder bool
}

// String returns the unescaped form of the argument.
func (a Arg) String() string {
	if a.Placeholder {
		return Query
	}

	if a.Key == "" {
		return a.Value
	}

	return a.Key + ":" + a.Value
}

// Command is a verb, its arguments and optionally the player it targets.
type Command struct {
	Player string
	Verb   string
	Args   []Arg
}

// NewCommand builds a server command from a verb and positional arguments.
func NewCommand(verb string, positional ...string) *Command {
	cmd := &Command{Verb: verb, Args: make([]Arg, 0, len(positional))}
	for _, p := range positional {
		cmd.Args = append(cmd.Args, Arg{Value: p})
	}

	return cmd
}

// NewQuery builds a command asking for a value: the positional arguments
// followed by the `?` placeholder.
func NewQuery(verb string, positional ...string) *Command {
	return NewCommand(verb, positional...).Ask()
}

// Ask appends the `?` placeholder.
func (c *Command) Ask() *Command {
	c.Args = append(c.Args, Arg{Placeholder: true})
	return c
}

// For targets the command at a player.
func (c *Command) For(player string) *Command {
	c.Player = player
	return c
}

// With appends a tagged `key:value` argument.
func (c *Command) With(key, value string) *Command {
	c.Args = append(c.Args, Arg{Key: key, Value: value})
	return c
}

// IsStructured reports whether the reply carries tagged results.
func (c *Command) IsStructured() bool {
	return IsStructured(c.Verb)
}

// IsQuery reports whether the command ends in the `?` placeholder.
func (c *Command) IsQuery() bool {
	if len(c.Args) == 0 {
		return false
	}

	return c.Args[len(c.Args)-1].Placeholder
}

// Tokens returns the unescaped tokens of the command, player first.
func (c *Command) Tokens() []string {
	tokens := make([]string, 0, len(c.Args)+2)
	if c.Player != "" {
		tokens = append(tokens, c.Player)
	}

	tokens = append(tokens, c.Verb)
	for _, a := range c.Args {
		tokens = append(tokens, a.String())
	}

	return tokens
}

// Encode returns the wire form of the command, without the line terminator.
func (c *Command) Encode() string {
	var b strings.Builder
	if c.Player != "" {
		b.WriteString(Escape(c.Player))
		b.WriteByte(' ')
	}

	// Positional and keyed args keep their relative order on the wire.
	b.WriteString(Escape(c.Verb))
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(encodeArg(a))
	}

	return b.String()
}

// String returns the unescaped, human readable form of the command.
func (c *Command) String() string {
	return strings.Join(c.Tokens(), " ")
}

// FormatCommand joins verb, the escaped positional arguments and the keyed
// arguments rendered as `key:escaped_value`, space separated.
func FormatCommand(verb string, positional []string, keyed []Arg) string {
	cmd := NewCommand(verb, positional...)
	for _, k := range keyed {
		cmd.With(k.Key, k.Value)
	}

	return cmd.Encode()
}

// ParseCommand splits a human readable command string such as
// "playlist jump +1" or "status 0 2 tags:a,l" into a Command. Tokens of the
// form `identifier:value` become keyed arguments, a lone `?` is the
// placeholder and anything else is positional.
func ParseCommand(s string) *Command {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return &Command{}
	}

	cmd := &Command{Verb: fields[0]}
	for _, f := range fields[1:] {
		if f == Query {
			cmd.Ask()
			continue
		}

		if key, value, ok := splitTag(f); ok && isIdentifier(key) {
			cmd.With(key, value)
			continue
		}

		cmd.Args = append(cmd.Args, Arg{Value: f})
	}

	return cmd
}

func encodeArg(a Arg) string {
	if a.Placeholder {
		return Query
	}

	if a.Key == "" {
		return Escape(a.Value)
	}

	return Escape(a.Key) + ":" + Escape(a.Value)
}

func splitTag(s string) (key, value string, ok bool) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return "", "", false
	}

	return s[:i], s[i+1:], true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', c == '_':
		case '0' <= c && c <= '9' && i > 0:
		default:
			return false
		}
	}

	return true
}
