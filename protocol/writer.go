package protocol

import (
	"io"
)

var Terminal = []byte("\n")

// WriteLine writes a single line followed by the terminator.
func WriteLine(w io.Writer, line string) error {
	b := make([]byte, 0, len(line)+len(Terminal))
	b = append(b, line...)
	b = append(b, Terminal...)

	_, err := w.Write(b)
	return err
}

// WriteCommand writes the wire form of cmd as a single line.
func WriteCommand(w io.Writer, cmd *Command) error {
	return WriteLine(w, cmd.Encode())
}
