package protocol

import (
	"bufio"
	"errors"
	"io"
	"net"
)

// MaxLineLength bounds a single line received from the server. Large
// library queries can get long, but never this long.
const MaxLineLength = 1 << 20

// LineReader reads newline terminated lines. Unlike bufio.Reader it keeps
// bytes it has already received when a read deadline expires mid-line, so
// the caller can poll with short deadlines without losing data.
type LineReader struct {
	r       *bufio.Reader
	pending []byte
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReader(r)}
}

// ReadLine returns the next line without its terminator. When the
// underlying reader times out the partial line is kept for the next call
// and the timeout error is returned.
func (l *LineReader) ReadLine() (string, error) {
	for {
		chunk, err := l.r.ReadSlice('\n')
		l.pending = append(l.pending, chunk...)

		if len(l.pending) > MaxLineLength {
			l.pending = nil
			return "", ErrLineTooLong
		}

		if err == nil {
			line := RemoveTrailingCR(l.pending[:len(l.pending)-1])
			l.pending = nil
			return string(line), nil
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		return "", err
	}
}

// Buffered reports whether a partial line is waiting for its terminator.
func (l *LineReader) Buffered() bool {
	return len(l.pending) > 0 || l.r.Buffered() > 0
}

// IsTimeout reports whether err is a network read deadline expiring.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func RemoveTrailingCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		// Remove the optional trailing \r
		return data[:len(data)-1]
	}

	return data
}
