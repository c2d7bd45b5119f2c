package devserver_test

import (
	"context"
	"net"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/api"
	"github.com/papercomputeco/spool/pkg/chat"
	"github.com/papercomputeco/spool/pkg/devserver"
	"github.com/papercomputeco/spool/pkg/store/inmemory"
)

var _ = Describe("Server", func() {
	var (
		srv     *devserver.Server
		client  *api.Client
		baseURL string
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()

		srv = devserver.NewServer(devserver.Config{}, zap.NewNop())

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		baseURL = "http://" + ln.Addr().String()

		go srv.ServeListener(ln)
		DeferCleanup(func() { srv.Shutdown() })

		client, err = api.NewClient(api.Config{URL: baseURL})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("session CRUD", func() {
		It("creates, lists, and deletes sessions", func() {
			created, err := client.CreateSession(ctx, "debug the flaky test")
			Expect(err).NotTo(HaveOccurred())
			Expect(created.ID).NotTo(BeEmpty())
			Expect(created.Title).To(Equal("debug the flaky test"))

			sessions, err := client.ListSessions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(HaveLen(1))
			Expect(sessions[0].ID).To(Equal(created.ID))

			Expect(client.DeleteSession(ctx, created.ID)).To(Succeed())

			sessions, err = client.ListSessions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(BeEmpty())
		})

		It("404s on unknown sessions", func() {
			err := client.DeleteSession(ctx, "nope")
			Expect(err).To(HaveOccurred())

			_, err = client.ListMessages(ctx, "nope")
			Expect(err).To(HaveOccurred())

			Expect(client.Prompt(ctx, "nope", "hi")).NotTo(Succeed())
		})

		It("starts sessions with an empty history", func() {
			created, err := client.CreateSession(ctx, "fresh")
			Expect(err).NotTo(HaveOccurred())

			messages, err := client.ListMessages(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(messages).To(BeEmpty())
		})
	})

	Describe("prompting", func() {
		It("commits the user message and a streamed assistant reply", func() {
			created, err := client.CreateSession(ctx, "echo")
			Expect(err).NotTo(HaveOccurred())

			Expect(client.Prompt(ctx, created.ID, "hello there")).To(Succeed())

			Eventually(func() int {
				messages, err := client.ListMessages(ctx, created.ID)
				if err != nil {
					return 0
				}
				return len(messages)
			}).Should(Equal(2))

			messages, err := client.ListMessages(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(messages[0].Role).To(Equal("user"))
			Expect(messages[0].Text()).To(Equal("hello there"))
			Expect(messages[1].Role).To(Equal("assistant"))
			Expect(messages[1].Text()).To(Equal("You said: hello there"))
		})
	})

	Describe("event feed", func() {
		It("streams the reply as domain events", func() {
			created, err := client.CreateSession(ctx, "stream")
			Expect(err).NotTo(HaveOccurred())

			var mu sync.Mutex
			var events []chat.Event
			subscriber := &chat.StreamSubscriber{BaseURL: baseURL}
			sub, err := subscriber.Subscribe(ctx, created.ID, func(ev chat.Event) {
				mu.Lock()
				events = append(events, ev)
				mu.Unlock()
			})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(sub.Stop)

			Expect(client.Prompt(ctx, created.ID, "hi")).To(Succeed())

			completed := func() bool {
				mu.Lock()
				defer mu.Unlock()
				for _, ev := range events {
					if _, ok := ev.(*chat.MessageCompleted); ok {
						return true
					}
				}
				return false
			}
			Eventually(completed, 5*time.Second).Should(BeTrue())

			mu.Lock()
			defer mu.Unlock()

			Expect(events[0]).To(BeAssignableToTypeOf(&chat.MessageCreated{}))
			Expect(events[1]).To(BeAssignableToTypeOf(&chat.PartCreated{}))

			var text string
			for _, ev := range events {
				if upd, ok := ev.(*chat.PartUpdated); ok {
					text += upd.Delta.Text
				}
			}
			Expect(text).To(Equal("You said: hi"))
		})

		It("shuts down promptly while event feeds are open", func() {
			created, err := client.CreateSession(ctx, "teardown")
			Expect(err).NotTo(HaveOccurred())

			subscriber := &chat.StreamSubscriber{BaseURL: baseURL}
			sub, err := subscriber.Subscribe(ctx, created.ID, func(chat.Event) {})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(sub.Stop)

			done := make(chan error, 1)
			go func() { done <- srv.Shutdown() }()

			// An open feed must not wedge Shutdown: the feed is an
			// in-flight request that only ends once its channel closes.
			Eventually(done, 5*time.Second).Should(Receive(BeNil()))
		})

		It("drives the full assembler pipeline end to end", func() {
			created, err := client.CreateSession(ctx, "e2e")
			Expect(err).NotTo(HaveOccurred())

			store := inmemory.NewDriver()
			assembler := chat.NewAssembler(chat.Config{
				Store:      store,
				Subscriber: &chat.StreamSubscriber{BaseURL: baseURL},
				Prompter:   client,
			})

			Expect(assembler.SendMessage(ctx, created.ID, "run the tests")).To(Succeed())

			Eventually(assembler.State, 5*time.Second).Should(Equal(chat.StateCompleted))

			messages, err := store.ListMessages(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(messages).To(HaveLen(2))
			Expect(messages[0].Role).To(Equal("user"))
			Expect(messages[1].Text()).To(Equal("You said: run the tests"))
		})
	})
})
