package rpc

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Protocol", func() {
	DescribeTable("readPacket", func(input string, expectsError bool) {
		buf := bytes.NewBufferString(input)
		_, err := readPacket(buf)
		if expectsError {
			Expect(err).To(HaveOccurred())
		} else {
			Expect(err).NotTo(HaveOccurred())
		}
	},
		Entry("Normal", "Content-Length: 2\r\n\r\n{}", false),
		Entry("Unknown header", "Content-Length: 2\r\nContent-Type: application/json\r\n\r\n{}", false),
		Entry("Missing content length", "\r\n{}", true),
		Entry("Invalid content length", "Content-Length: aa\r\n{}", true),
		Entry("Negative content length", "Content-Length: -5\r\n{}", true),
		Entry("Missing header", "{}", true),
		Entry("Wrong length", "Content-Length: 100\r\n\r\n{}", true),
		Entry("Oversized content length", "Content-Length: 9223372036854775807\r\n\r\n{}", true),
		Entry("Content length over the limit", "Content-Length: 16777217\r\n\r\n{}", true),
		Entry("Broken body", "Content-Length: 1\r\n\r\n{", true),
		Entry("Empty request", "", true),
	)

	It("should read consecutive packets from one stream", func() {
		buf := bytes.NewBufferString("Content-Length: 2\r\n\r\n{}Content-Length: 5\r\nTraceparent: tp\r\n\r\n\"foo\"")
		pr := newPacketReader(buf)

		first, err := pr.Read()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(first.Body)).To(Equal("{}"))

		second, err := pr.Read()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(second.Body)).To(Equal(`"foo"`))
		Expect(second.Traceparent).To(Equal("tp"))
	})

	DescribeTable("readEnvelope", func(body string, isResponse bool) {
		buf := bytes.NewBufferString(frame(body))
		env, _, err := newPacketReader(buf).readEnvelope()
		Expect(err).NotTo(HaveOccurred())
		Expect(env.isResponse()).To(Equal(isResponse))
	},
		Entry("Call", `{"jsonrpc":"2.0","id":1,"method":"foo"}`, false),
		Entry("Notification", `{"jsonrpc":"2.0","method":"foo","params":{}}`, false),
		Entry("Result", `{"jsonrpc":"2.0","id":1,"result":"foo"}`, true),
		Entry("Error", `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`, true),
	)

	It("writePacket", func() {
		var buf bytes.Buffer
		err := writePacket(GinkgoT().Context(), &buf, "foo")

		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(Equal("Content-Length: 5\r\n\r\n\"foo\""))
	})

	It("should reject a bind without params", func() {
		req := &AbstractRequest{Version: Version, Method: "foo"}
		var v struct{}
		Expect(req.Bind(&v)).To(MatchError("missing params"))
	})
})
