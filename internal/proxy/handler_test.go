package proxy_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/termsim-devserver/config"
	"github.com/angeloszaimis/termsim-devserver/internal/circuitbreaker"
	"github.com/angeloszaimis/termsim-devserver/internal/metrics"
	"github.com/angeloszaimis/termsim-devserver/internal/proxy"
	"github.com/angeloszaimis/termsim-devserver/pkg/logger"
)

type seenRequest struct {
	Method string
	URI    string
	Host   string
	Body   string
	Header http.Header
}

var _ = Describe("Handler", func() {
	var (
		backend   *httptest.Server
		mu        sync.Mutex
		seen      []seenRequest
		h         *proxy.Handler
		breakers  *circuitbreaker.Registry
		collector *metrics.Collector
	)

	lastSeen := func() seenRequest {
		mu.Lock()
		defer mu.Unlock()
		Expect(seen).NotTo(BeEmpty())
		return seen[len(seen)-1]
	}

	newHandler := func(rules []config.ProxyRule) *proxy.Handler {
		table, err := proxy.NewTable(rules)
		Expect(err).NotTo(HaveOccurred())
		return proxy.NewHandler(logger.Discard(), table, breakers, collector)
	}

	rulesFor := func(target string) []config.ProxyRule {
		return []config.ProxyRule{
			{Prefix: "/execute", Target: target},
			{Prefix: "/history", Target: target},
			{Prefix: "/clear-history", Target: target},
		}
	}

	BeforeEach(func() {
		seen = nil
		backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			seen = append(seen, seenRequest{
				Method: r.Method,
				URI:    r.URL.RequestURI(),
				Host:   r.Host,
				Body:   string(body),
				Header: r.Header.Clone(),
			})
			mu.Unlock()

			w.Header().Set("Content-Type", "application/json")
			if r.URL.Path == "/history" {
				w.Write([]byte(`{"history":[]}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"output":"ok","error":null}`))
		}))

		breakers = circuitbreaker.NewRegistry(2, time.Minute)
		collector = metrics.NewCollector(100, logger.Discard(), nil)
		h = newHandler(rulesFor(backend.URL))
	})

	AfterEach(func() {
		backend.Close()
	})

	Describe("ServeHTTP", func() {
		It("should forward /history to the backend unchanged", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost:3000/history", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(Equal(`{"history":[]}`))
			Expect(lastSeen().Method).To(Equal(http.MethodGet))
			Expect(lastSeen().URI).To(Equal("/history"))
		})

		It("should forward /execute with its body", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "http://localhost:3000/execute", strings.NewReader(`{"command":"ls"}`))
			req.Header.Set("Content-Type", "application/json")
			h.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(lastSeen().URI).To(Equal("/execute"))
			Expect(lastSeen().Body).To(Equal(`{"command":"ls"}`))
			Expect(lastSeen().Header.Get("Content-Type")).To(Equal("application/json"))
		})

		It("should preserve sub paths and queries", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "http://localhost:3000/clear-history/all?force=1", nil))

			Expect(lastSeen().URI).To(Equal("/clear-history/all?force=1"))
		})

		It("should send the target host by default", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost:3000/history", nil))

			Expect(lastSeen().Host).To(Equal(strings.TrimPrefix(backend.URL, "http://")))
		})

		It("should keep the client host when asked to", func() {
			rules := rulesFor(backend.URL)
			rules[1].PreserveHost = true
			h = newHandler(rules)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost:3000/history", nil))

			Expect(lastSeen().Host).To(Equal("localhost:3000"))
		})

		It("should pass client forwarding headers through untouched", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "http://localhost:3000/history", nil)
			req.Header.Set("X-Forwarded-For", "10.0.0.7")
			h.ServeHTTP(w, req)

			Expect(lastSeen().Header.Values("X-Forwarded-For")).To(Equal([]string{"10.0.0.7"}))
		})

		It("should not add forwarding headers of its own", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost:3000/history", nil))

			Expect(lastSeen().Header.Get("X-Forwarded-For")).To(BeEmpty())
		})

		It("should name the upstream on the response", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost:3000/history", nil))

			Expect(w.Header().Get(proxy.TargetHeader)).To(Equal(backend.URL))
		})

		It("should answer 404 for paths no rule matches", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost:3000/suggestions", nil))

			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(seen).To(BeEmpty())
		})

		It("should release the connection slot after the response", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost:3000/history", nil))

			up := h.Table().Upstreams()[0]
			Expect(up.ActiveConnections()).To(BeZero())
			Expect(up.EWMATime()).To(BeNumerically(">", 0))

			stats := h.Table().UpstreamStats()[backend.URL]
			Expect(stats.Healthy).To(BeTrue())
			Expect(stats.ActiveConnections).To(BeZero())
			Expect(stats.EWMAResponse).To(Equal(up.EWMATime()))
		})

		It("should emit request and response events", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost:3000/history", nil))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			collector.Run(ctx)

			route := collector.Snapshot().Routes["/history"]
			Expect(route.Requests).To(Equal(int64(1)))
			Expect(route.StatusCodes[http.StatusOK]).To(Equal(int64(1)))
		})
	})

	Context("when the backend is down", func() {
		var downURL string

		BeforeEach(func() {
			down := httptest.NewServer(http.NotFoundHandler())
			downURL = down.URL
			down.Close()
			h = newHandler(rulesFor(downURL))
		})

		It("should answer 502 Bad Gateway", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost:3000/history", nil))

			Expect(w.Code).To(Equal(http.StatusBadGateway))
			Expect(w.Body.String()).To(ContainSubstring("dev proxy"))
		})

		It("should open the circuit after repeated failures and answer 503", func() {
			for i := 0; i < 2; i++ {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "http://localhost:3000/execute", nil))
				Expect(w.Code).To(Equal(http.StatusBadGateway))
			}

			Expect(breakers.Stats()).To(HaveKeyWithValue(downURL, "OPEN"))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost:3000/history", nil))
			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(w.Header().Get("Retry-After")).NotTo(BeEmpty())
		})

		It("should count failures and rejections", func() {
			for i := 0; i < 3; i++ {
				h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "http://localhost:3000/execute", nil))
			}

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			collector.Run(ctx)

			route := collector.Snapshot().Routes["/execute"]
			Expect(route.Failures).To(Equal(int64(2)))
			Expect(route.Rejected).To(Equal(int64(1)))
		})
	})

	Context("when the request retrying an open circuit is cancelled", func() {
		BeforeEach(func() {
			breakers = circuitbreaker.NewRegistry(1, 20*time.Millisecond)
			h = newHandler(rulesFor(backend.URL))

			breakers.GetBreaker(backend.URL).RecordFailure()
			Expect(breakers.Stats()).To(HaveKeyWithValue(backend.URL, "OPEN"))
			time.Sleep(30 * time.Millisecond)
		})

		It("should let the next request through and close the circuit", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost:3000/history", nil).WithContext(ctx))
			Expect(w.Code).To(Equal(499))

			Expect(breakers.Stats()).To(HaveKeyWithValue(backend.URL, "OPEN"))

			for i := 0; i < 3; i++ {
				w = httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost:3000/history", nil))
				Expect(w.Code).To(Equal(http.StatusOK))
			}
			Expect(breakers.Stats()).To(HaveKeyWithValue(backend.URL, "CLOSED"))
		})
	})

	Context("without breakers or metrics", func() {
		It("should still forward", func() {
			table, err := proxy.NewTable(rulesFor(backend.URL))
			Expect(err).NotTo(HaveOccurred())
			plain := proxy.NewHandler(logger.Discard(), table, nil, nil)

			w := httptest.NewRecorder()
			plain.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost:3000/history", nil))
			Expect(w.Code).To(Equal(http.StatusOK))
		})
	})
})
