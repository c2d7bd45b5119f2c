package chat

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/sse"
)

var _ = Describe("DecodeEvent", func() {
	It("decodes message.created", func() {
		ev, err := DecodeEvent(sse.Event{
			Type: "message.created",
			Data: `{"messageID":"m1","sessionID":"s1","role":"assistant"}`,
		})
		Expect(err).NotTo(HaveOccurred())

		created, ok := ev.(*MessageCreated)
		Expect(ok).To(BeTrue())
		Expect(created.MessageID).To(Equal("m1"))
		Expect(created.SessionID).To(Equal("s1"))
		Expect(created.Role).To(Equal("assistant"))
	})

	It("decodes part.created", func() {
		ev, err := DecodeEvent(sse.Event{
			Type: "part.created",
			Data: `{"partID":"p1","messageID":"m1","sessionID":"s1","partType":"text"}`,
		})
		Expect(err).NotTo(HaveOccurred())

		part, ok := ev.(*PartCreated)
		Expect(ok).To(BeTrue())
		Expect(part.PartID).To(Equal("p1"))
		Expect(part.PartType).To(Equal("text"))
	})

	It("decodes part.updated with a text delta", func() {
		ev, err := DecodeEvent(sse.Event{
			Type: "part.updated",
			Data: `{"partID":"p1","messageID":"m1","sessionID":"s1","delta":{"text":"Hel"}}`,
		})
		Expect(err).NotTo(HaveOccurred())

		updated, ok := ev.(*PartUpdated)
		Expect(ok).To(BeTrue())
		Expect(updated.Delta.Text).To(Equal("Hel"))
	})

	It("decodes message.completed", func() {
		ev, err := DecodeEvent(sse.Event{
			Type: "message.completed",
			Data: `{"messageID":"m1","sessionID":"s1"}`,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(BeAssignableToTypeOf(&MessageCompleted{}))
	})

	It("decodes error events", func() {
		ev, err := DecodeEvent(sse.Event{
			Type: "error",
			Data: `{"error":"boom","code":"overloaded"}`,
		})
		Expect(err).NotTo(HaveOccurred())

		streamErr, ok := ev.(*StreamError)
		Expect(ok).To(BeTrue())
		Expect(streamErr.Err).To(Equal("boom"))
		Expect(streamErr.Code).To(Equal("overloaded"))
	})

	It("falls back to the payload type field when the frame has no event type", func() {
		ev, err := DecodeEvent(sse.Event{
			Data: `{"type":"message.completed","messageID":"m1","sessionID":"s1"}`,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(BeAssignableToTypeOf(&MessageCompleted{}))
	})

	It("returns a ProtocolError for malformed payloads", func() {
		_, err := DecodeEvent(sse.Event{
			Type: "part.updated",
			Data: `{not json`,
		})

		var protoErr *ProtocolError
		Expect(err).To(BeAssignableToTypeOf(protoErr))
	})

	It("returns a ProtocolError for unknown event types", func() {
		_, err := DecodeEvent(sse.Event{
			Type: "session.compacted",
			Data: `{}`,
		})

		var protoErr *ProtocolError
		Expect(err).To(BeAssignableToTypeOf(protoErr))
	})
})
