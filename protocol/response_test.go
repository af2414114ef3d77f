package protocol_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/squeeze/protocol"
)

var _ = Describe("Response", func() {
	Describe("StripEcho()", func() {
		It("returns the answer to a scalar query", func() {
			cmd := protocol.NewQuery("name")

			payload, err := protocol.StripEcho(cmd, "name ?  My Player")
			Expect(err).To(Succeed())

			resp, err := protocol.NewResponse(cmd, payload)
			Expect(err).To(Succeed())
			Expect(resp.Value()).To(Equal("My Player"))
		})

		It("handles the server replacing the placeholder", func() {
			cmd := protocol.NewQuery("mixer", "volume").For("00:04:20:12:34:56")

			payload, err := protocol.StripEcho(cmd, "00%3A04%3A20%3A12%3A34%3A56 mixer volume 45")
			Expect(err).To(Succeed())
			Expect(payload).To(Equal([]string{"45"}))
		})

		It("requires the full echo for structured commands", func() {
			cmd := protocol.NewQuery("syncgroups")

			payload, err := protocol.StripEcho(cmd, "syncgroups ? sync_members%3Aa%2Cb")
			Expect(err).To(Succeed())
			Expect(payload).To(Equal([]string{"sync_members%3Aa%2Cb"}))
		})

		It("compares tokens unescaped", func() {
			cmd := protocol.NewCommand("status", "0", "1").With("tags", "a")

			_, err := protocol.StripEcho(cmd, "status 0 1 tags%3Aa title%3AX")
			Expect(err).To(Succeed())
		})

		It("rejects replies to another command", func() {
			_, err := protocol.StripEcho(protocol.NewQuery("mode"), "version 8.3.1")
			Expect(err).To(HaveOccurred())
		})

		It("rejects replies shorter than the echo", func() {
			_, err := protocol.StripEcho(protocol.NewCommand("playlist", "index", "3"), "playlist index")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ParseToken()", func() {
		It("splits at the first colon after unescaping", func() {
			Expect(protocol.ParseToken("artwork_url%3Ahttp%3A%2F%2Fx%2Fy.jpg")).To(Equal(protocol.Token{
				Key:   "artwork_url",
				Value: "http://x/y.jpg",
				Keyed: true,
			}))
		})

		It("keeps bare values", func() {
			Expect(protocol.ParseToken("Blue%20Train")).To(Equal(protocol.Token{Value: "Blue Train"}))
		})
	})

	Describe("ParseFields()", func() {
		It("lets the last occurrence of a key win", func() {
			tokens, err := protocol.ParseTokens([]string{"id%3A1", "title%3AA", "id%3A2"})
			Expect(err).To(Succeed())

			Expect(protocol.ParseFields(tokens)).To(Equal(map[string]string{"id": "2", "title": "A"}))
		})

		It("rejects bare tokens", func() {
			tokens, err := protocol.ParseTokens([]string{"id%3A1", "stray"})
			Expect(err).To(Succeed())

			_, err = protocol.ParseFields(tokens)
			Expect(errors.Is(err, protocol.ErrMissingTag)).To(BeTrue())
		})
	})

	Describe("Loop()", func() {
		It("starts a new item at every start key", func() {
			tokens, err := protocol.ParseTokens([]string{
				"player_name%3AKitchen",
				"playlist%20index%3A0", "title%3AA",
				"playlist%20index%3A1", "title%3AB", "artist%3AC",
			})
			Expect(err).To(Succeed())

			Expect(protocol.Loop(tokens, "playlist index")).To(Equal([]map[string]string{
				{"playlist index": "0", "title": "A"},
				{"playlist index": "1", "title": "B", "artist": "C"},
			}))
		})

		It("returns nothing when the start key never appears", func() {
			tokens, err := protocol.ParseTokens([]string{"count%3A0"})
			Expect(err).To(Succeed())

			Expect(protocol.Loop(tokens, "id")).To(BeEmpty())
		})
	})

	Describe("Response", func() {
		It("gives access to fields and the preserved payload", func() {
			resp, err := protocol.NewResponse(protocol.NewCommand("serverstatus"), []string{"version%3A8.3.1", "player%20count%3A2"})
			Expect(err).To(Succeed())

			count, ok := resp.Get("player count")
			Expect(ok).To(BeTrue())
			Expect(count).To(Equal("2"))
			Expect(resp.Preserved()).To(Equal("version%3A8.3.1 player%20count%3A2"))
		})
	})
})
