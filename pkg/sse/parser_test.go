package sse

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Parser", func() {
	var p *Parser

	BeforeEach(func() {
		p = NewParser()
	})

	Describe("Feed", func() {
		Context("with standard SSE events", func() {
			It("parses a single event", func() {
				events := p.Feed([]byte("data: hello world\n\n"))
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("hello world"))
				Expect(events[0].Type).To(BeEmpty())
				Expect(events[0].ID).To(BeEmpty())
			})

			It("parses multiple events in one chunk", func() {
				events := p.Feed([]byte("data: first\n\ndata: second\n\n"))
				Expect(events).To(HaveLen(2))
				Expect(events[0].Data).To(Equal("first"))
				Expect(events[1].Data).To(Equal("second"))
			})

			It("parses event type and id", func() {
				events := p.Feed([]byte("id: 42\nevent: message.created\ndata: {\"messageID\":\"m1\"}\n\n"))
				Expect(events).To(HaveLen(1))
				Expect(events[0].ID).To(Equal("42"))
				Expect(events[0].Type).To(Equal("message.created"))
				Expect(events[0].Data).To(Equal("{\"messageID\":\"m1\"}"))
			})

			It("joins multiple data lines with newline", func() {
				events := p.Feed([]byte("data: line one\ndata: line two\ndata: line three\n\n"))
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("line one\nline two\nline three"))
			})

			It("keeps the join when the first data line is empty", func() {
				events := p.Feed([]byte("data:\ndata: x\n\n"))
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("\nx"))
			})

			It("skips comment lines", func() {
				events := p.Feed([]byte(": keep-alive\ndata: real\n\n"))
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("real"))
			})

			It("skips blank lines with no accumulated fields", func() {
				events := p.Feed([]byte("\n\n\ndata: after\n\n"))
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("after"))
			})

			It("strips CR from CRLF-terminated lines", func() {
				events := p.Feed([]byte("data: windows\r\n\r\n"))
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("windows"))
			})

			It("ignores retry and unknown fields", func() {
				events := p.Feed([]byte("retry: 5000\nbogus: x\ndata: kept\n\n"))
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("kept"))
			})
		})

		Context("with arbitrary chunk boundaries", func() {
			It("assembles an event split across two chunks", func() {
				events := p.Feed([]byte("event: part.upd"))
				Expect(events).To(BeEmpty())

				events = p.Feed([]byte("ated\ndata: {\"partID\":\"p1\"}\n\n"))
				Expect(events).To(HaveLen(1))
				Expect(events[0].Type).To(Equal("part.updated"))
				Expect(events[0].Data).To(Equal("{\"partID\":\"p1\"}"))
			})

			It("assembles an event fed one byte at a time", func() {
				wire := "id: 7\nevent: message.completed\ndata: done\n\n"

				var events []Event
				for i := 0; i < len(wire); i++ {
					events = append(events, p.Feed([]byte{wire[i]})...)
				}

				Expect(events).To(HaveLen(1))
				Expect(events[0].ID).To(Equal("7"))
				Expect(events[0].Type).To(Equal("message.completed"))
				Expect(events[0].Data).To(Equal("done"))
			})

			It("round-trips a frame sequence regardless of chunking", func() {
				wire := "id: 1\ndata: alpha\n\n" +
					"event: custom\ndata: beta\ndata: gamma\n\n" +
					"data: delta\n\n"

				parseChunked := func(size int) []Event {
					parser := NewParser()
					var out []Event
					for start := 0; start < len(wire); start += size {
						end := min(start+size, len(wire))
						out = append(out, parser.Feed([]byte(wire[start:end]))...)
					}
					return out
				}

				whole := parseChunked(len(wire))
				Expect(whole).To(HaveLen(3))
				Expect(whole[0]).To(Equal(Event{ID: "1", Data: "alpha"}))
				Expect(whole[1]).To(Equal(Event{Type: "custom", Data: "beta\ngamma"}))
				Expect(whole[2]).To(Equal(Event{Data: "delta"}))

				for _, size := range []int{1, 2, 3, 5, 7, 16} {
					Expect(parseChunked(size)).To(Equal(whole))
				}
			})
		})
	})

	Describe("Flush", func() {
		It("yields an in-progress event when the stream ends without a blank line", func() {
			Expect(p.Feed([]byte("data: trailing"))).To(BeEmpty())
			Expect(p.Feed([]byte("\n"))).To(BeEmpty())

			ev, ok := p.Flush()
			Expect(ok).To(BeTrue())
			Expect(ev.Data).To(Equal("trailing"))
		})

		It("returns false when nothing is buffered", func() {
			_, ok := p.Flush()
			Expect(ok).To(BeFalse())
		})
	})
})
