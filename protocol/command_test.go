package protocol_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/squeeze/protocol"
)

var _ = Describe("Command", func() {
	Describe("Encode()", func() {
		It("escapes the player and arguments but not the placeholder", func() {
			cmd := protocol.NewQuery("mixer", "volume").For("00:04:20:12:34:56")

			Expect(cmd.Encode()).To(Equal("00%3A04%3A20%3A12%3A34%3A56 mixer volume ?"))
			Expect(cmd.IsQuery()).To(BeTrue())
		})

		It("renders keyed arguments as key:value", func() {
			cmd := protocol.NewCommand("status", "0", "2").With("tags", "a,l")

			Expect(cmd.Encode()).To(Equal("status 0 2 tags:a%2Cl"))
			Expect(cmd.String()).To(Equal("status 0 2 tags:a,l"))
			Expect(cmd.IsStructured()).To(BeTrue())
			Expect(cmd.IsQuery()).To(BeFalse())
		})

		It("escapes a question mark given as a value", func() {
			cmd := protocol.NewCommand("name", "?")

			Expect(cmd.Encode()).To(Equal("name %3F"))
			Expect(cmd.IsQuery()).To(BeFalse())
		})

		It("escapes positional values with spaces", func() {
			Expect(protocol.NewCommand("name", "Living Room").Encode()).To(Equal("name Living%20Room"))
		})
	})

	Describe("FormatCommand()", func() {
		It("joins positional and keyed arguments", func() {
			line := protocol.FormatCommand("songinfo", []string{"0", "100"}, []protocol.Arg{{Key: "track_id", Value: "42"}})
			Expect(line).To(Equal("songinfo 0 100 track_id:42"))
		})
	})

	Describe("ParseCommand()", func() {
		It("detects keyed arguments", func() {
			cmd := protocol.ParseCommand("status 0 2 tags:a,l")

			Expect(cmd.Verb).To(Equal("status"))
			Expect(cmd.Args).To(Equal([]protocol.Arg{
				{Value: "0"},
				{Value: "2"},
				{Key: "tags", Value: "a,l"},
			}))
		})

		It("reads a lone question mark as the placeholder", func() {
			cmd := protocol.ParseCommand("mixer volume ?")

			Expect(cmd.IsQuery()).To(BeTrue())
			Expect(cmd.Encode()).To(Equal("mixer volume ?"))
		})

		It("keeps relative volume changes positional", func() {
			cmd := protocol.ParseCommand("mixer volume +5")
			Expect(cmd.Tokens()).To(Equal([]string{"mixer", "volume", "+5"}))
		})
	})
})
