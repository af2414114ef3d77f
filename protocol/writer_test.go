package protocol_test

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/squeeze/protocol"
)

var _ = Describe("Parsing/ Writer", func() {
	Describe("WriteLine", func() {
		It("ends in \\n", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteLine(w, "version ?")).To(Succeed())
			Expect(w.String()).To(Equal("version ?\n"))
		})
	})

	Describe("WriteCommand", func() {
		It("writes the encoded command", func() {
			w := bytes.NewBuffer([]byte{})
			cmd := protocol.NewCommand("name", "Living Room").For("192.168.1.20")

			Expect(protocol.WriteCommand(w, cmd)).To(Succeed())
			Expect(w.String()).To(Equal("192.168.1.20 name Living%20Room\n"))
		})
	})
})
