package protocol_test

import (
	"bytes"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/squeeze/protocol"
)

// timeoutErr looks like a net.Error for an expired deadline.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// chunkReader returns its chunks one per Read, and a timeout for every
// empty chunk.
type chunkReader struct {
	chunks []string
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}

	chunk := c.chunks[0]
	c.chunks = c.chunks[1:]

	if chunk == "" {
		return 0, timeoutErr{}
	}

	return copy(p, chunk), nil
}

var _ = Describe("Parsing", func() {
	Describe("LineReader", func() {
		It("returns io.EOF if the reader cannot find a newline", func() {
			r := protocol.NewLineReader(bytes.NewReader([]byte("I have no new line")))

			_, err := r.ReadLine()
			Expect(err).To(MatchError(io.EOF))
		})

		It("reads lines without their terminator", func() {
			r := protocol.NewLineReader(strings.NewReader("version ?\r\nplayer count 2\n"))

			Expect(r.ReadLine()).To(Equal("version ?"))
			Expect(r.ReadLine()).To(Equal("player count 2"))
		})

		It("keeps a partial line across a timeout", func() {
			r := protocol.NewLineReader(&chunkReader{chunks: []string{"aa%3Abb playlist ", "", "newsong Blue 0\n"}})

			_, err := r.ReadLine()
			Expect(protocol.IsTimeout(err)).To(BeTrue())
			Expect(r.Buffered()).To(BeTrue())

			Expect(r.ReadLine()).To(Equal("aa%3Abb playlist newsong Blue 0"))
		})

		It("reads lines longer than its buffer", func() {
			long := strings.Repeat("x", 10000)
			r := protocol.NewLineReader(strings.NewReader(long + "\n"))

			Expect(r.ReadLine()).To(Equal(long))
		})

		It("rejects lines over the maximum length", func() {
			r := protocol.NewLineReader(strings.NewReader(strings.Repeat("x", protocol.MaxLineLength+10) + "\n"))

			_, err := r.ReadLine()
			Expect(errors.Is(err, protocol.ErrLineTooLong)).To(BeTrue())
		})
	})

	Describe("IsTimeout()", func() {
		It("is false for other errors", func() {
			Expect(protocol.IsTimeout(io.EOF)).To(BeFalse())
			Expect(protocol.IsTimeout(nil)).To(BeFalse())
		})
	})
})
