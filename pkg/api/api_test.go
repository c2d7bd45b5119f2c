package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/api"
)

// recordedRequest captures what the server saw for later assertions.
type recordedRequest struct {
	method string
	path   string
	header http.Header
	body   []byte
}

var _ = Describe("Client", func() {
	var (
		mu       sync.Mutex
		requests []recordedRequest
		handler  http.HandlerFunc
		server   *httptest.Server
		client   *api.Client
		ctx      context.Context
	)

	lastRequest := func() recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		Expect(requests).NotTo(BeEmpty())
		return requests[len(requests)-1]
	}

	BeforeEach(func() {
		ctx = context.Background()
		requests = nil
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := make([]byte, 0)
			if r.Body != nil {
				buf := new(json.RawMessage)
				if err := json.NewDecoder(r.Body).Decode(buf); err == nil {
					body = *buf
				}
			}
			mu.Lock()
			requests = append(requests, recordedRequest{
				method: r.Method,
				path:   r.URL.Path,
				header: r.Header.Clone(),
				body:   body,
			})
			mu.Unlock()
			handler(w, r)
		}))
		DeferCleanup(server.Close)

		var err error
		client, err = api.NewClient(api.Config{
			URL:     server.URL,
			Headers: map[string]string{"Authorization": "Bearer tok"},
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewClient", func() {
		It("requires a server URL", func() {
			_, err := api.NewClient(api.Config{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ListSessions", func() {
		It("decodes the session list", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[{"id":"s1","title":"refactor parser"},{"id":"s2","title":"fix tests"}]`))
			}

			sessions, err := client.ListSessions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(HaveLen(2))
			Expect(sessions[0].ID).To(Equal("s1"))
			Expect(sessions[1].Title).To(Equal("fix tests"))

			req := lastRequest()
			Expect(req.method).To(Equal(http.MethodGet))
			Expect(req.path).To(Equal("/session"))
		})

		It("sends configured headers and a request ID", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[]`))
			}

			_, err := client.ListSessions(ctx)
			Expect(err).NotTo(HaveOccurred())

			req := lastRequest()
			Expect(req.header.Get("Authorization")).To(Equal("Bearer tok"))
			Expect(req.header.Get("X-Request-ID")).NotTo(BeEmpty())
			Expect(req.header.Get("Accept")).To(Equal("application/json"))
		})
	})

	Describe("CreateSession", func() {
		It("posts the title and decodes the created session", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"id":"s9","title":"new work"}`))
			}

			session, err := client.CreateSession(ctx, "new work")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.ID).To(Equal("s9"))

			req := lastRequest()
			Expect(req.method).To(Equal(http.MethodPost))
			Expect(req.path).To(Equal("/session"))
			Expect(req.header.Get("Content-Type")).To(Equal("application/json"))
			Expect(string(req.body)).To(MatchJSON(`{"title":"new work"}`))
		})
	})

	Describe("DeleteSession", func() {
		It("issues a DELETE for the session", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}

			Expect(client.DeleteSession(ctx, "s1")).To(Succeed())

			req := lastRequest()
			Expect(req.method).To(Equal(http.MethodDelete))
			Expect(req.path).To(Equal("/session/s1"))
		})
	})

	Describe("ListMessages", func() {
		It("decodes messages with their parts", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[{"id":"m1","sessionID":"s1","role":"assistant","parts":[{"id":"p1","type":"text","text":"done"}]}]`))
			}

			messages, err := client.ListMessages(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(messages).To(HaveLen(1))
			Expect(messages[0].Text()).To(Equal("done"))

			Expect(lastRequest().path).To(Equal("/session/s1/message"))
		})
	})

	Describe("Prompt", func() {
		It("posts the content as a text part", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
			}

			Expect(client.Prompt(ctx, "s1", "explain this diff")).To(Succeed())

			req := lastRequest()
			Expect(req.method).To(Equal(http.MethodPost))
			Expect(req.path).To(Equal("/session/s1/message"))
			Expect(string(req.body)).To(MatchJSON(`{"parts":[{"type":"text","text":"explain this diff"}]}`))
		})

		It("maps non-2xx responses to StatusError", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("overloaded"))
			}

			err := client.Prompt(ctx, "s1", "hello")
			Expect(err).To(HaveOccurred())

			var statusErr *api.StatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(statusErr.Body).To(ContainSubstring("overloaded"))
		})
	})
})
