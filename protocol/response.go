package protocol

import (
	"fmt"
	"strings"
)

// Token is a decoded result token. Tagged tokens (`key:value`) have Keyed
// set, bare values only carry Value.
type Token struct {
	Key   string
	Value string
	Keyed bool
}

// ParseToken unescapes a raw wire token and splits it at its first colon.
func ParseToken(raw string) (Token, error) {
	s, err := Unescape(raw)
	if err != nil {
		return Token{}, err
	}

	if key, value, ok := splitTag(s); ok && key != "" {
		return Token{Key: key, Value: value, Keyed: true}, nil
	}

	return Token{Value: s}, nil
}

// ParseTokens decodes every raw token in order.
func ParseTokens(raw []string) ([]Token, error) {
	tokens := make([]Token, 0, len(raw))
	for _, r := range raw {
		t, err := ParseToken(r)
		if err != nil {
			return nil, err
		}

		tokens = append(tokens, t)
	}

	return tokens, nil
}

// ParseFields builds a map from tagged tokens. When a key repeats, the last
// occurrence wins. A bare token is a DecodeError.
func ParseFields(tokens []Token) (map[string]string, error) {
	fields := make(map[string]string, len(tokens))
	for _, t := range tokens {
		if !t.Keyed {
			return nil, &DecodeError{Token: t.Value, Cause: ErrMissingTag}
		}

		fields[t.Key] = t.Value
	}

	return fields, nil
}

// Loop splits tagged tokens into the items of a result loop. Every item
// starts with startKey. Tokens before the first startKey are not part of
// the loop and are skipped.
func Loop(tokens []Token, startKey string) []map[string]string {
	var (
		items   []map[string]string
		current map[string]string
	)

	for _, t := range tokens {
		if !t.Keyed {
			continue
		}

		if t.Key == startKey {
			current = make(map[string]string)
			items = append(items, current)
		}

		if current != nil {
			current[t.Key] = t.Value
		}
	}

	return items
}

// Response is the payload of a server reply to a Command, with the echoed
// command removed.
type Response struct {
	Command *Command

	// Raw holds the wire tokens of the payload, still escaped.
	Raw []string

	// Tokens holds the decoded payload tokens.
	Tokens []Token
}

// NewResponse decodes the raw payload tokens for cmd.
func NewResponse(cmd *Command, raw []string) (*Response, error) {
	tokens, err := ParseTokens(raw)
	if err != nil {
		return nil, err
	}

	return &Response{Command: cmd, Raw: raw, Tokens: tokens}, nil
}

// Preserved returns the payload as it was received, without decoding.
func (r *Response) Preserved() string {
	return strings.Join(r.Raw, " ")
}

// Value returns the decoded payload as a single string. This is how scalar
// replies such as `mixer volume ?` are read.
func (r *Response) Value() string {
	values := make([]string, 0, len(r.Tokens))
	for _, t := range r.Tokens {
		if t.Keyed {
			values = append(values, t.Key+":"+t.Value)
			continue
		}

		values = append(values, t.Value)
	}

	return strings.Join(values, " ")
}

// Fields returns the tagged results as a map, ignoring bare values. Later
// occurrences of a key win.
func (r *Response) Fields() map[string]string {
	fields := make(map[string]string, len(r.Tokens))
	for _, t := range r.Tokens {
		if t.Keyed {
			fields[t.Key] = t.Value
		}
	}

	return fields
}

// Get returns a single tagged result.
func (r *Response) Get(key string) (string, bool) {
	value, ok := r.Fields()[key]
	return value, ok
}

// Loop returns the items of a result loop, see Loop.
func (r *Response) Loop(startKey string) []map[string]string {
	return Loop(r.Tokens, startKey)
}

// StripEcho locates the payload in a raw reply line to cmd. It returns the
// wire tokens following the echoed command, or an error if the line does
// not start with the echo of cmd.
//
// For queries of scalar values the server replaces the trailing `?` with the
// answer, so only the tokens before the `?` have to match; a literal `?`
// echoed anyway is skipped. Structured verbs and everything else must be
// echoed in full. Tokens are compared unescaped.
func StripEcho(cmd *Command, line string) ([]string, error) {
	sent := cmd.Tokens()
	received := strings.Split(line, " ")

	expect := len(sent)
	placeholder := cmd.IsQuery() && !cmd.IsStructured()
	if placeholder {
		expect--
	}

	if len(received) < expect {
		return nil, fmt.Errorf("reply '%s' is shorter than the echo of '%s'", line, cmd)
	}

	for i := 0; i < expect; i++ {
		got, err := Unescape(received[i])
		if err != nil {
			return nil, err
		}

		if got != sent[i] {
			return nil, fmt.Errorf("reply '%s' does not echo '%s'", line, cmd)
		}
	}

	rest := received[expect:]
	if placeholder && len(rest) > 0 && rest[0] == Query {
		rest = rest[1:]
	}

	return trimEmpty(rest), nil
}

// Fields splits a wire line into its raw tokens, dropping empty ones.
func Fields(line string) []string {
	return trimEmpty(strings.Split(line, " "))
}

func trimEmpty(tokens []string) []string {
	out := tokens[:0:0]
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}

	return out
}
