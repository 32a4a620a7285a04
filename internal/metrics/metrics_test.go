package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/termsim-devserver/internal/metrics"
)

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.NewMetrics()
	})

	Describe("IncrementRequests", func() {
		It("should count requests per route", func() {
			m.IncrementRequests("/execute")
			m.IncrementRequests("/history")
			m.IncrementRequests("/execute")

			snap := m.Snapshot()
			Expect(snap.TotalRequests).To(Equal(int64(3)))
			Expect(snap.Routes["/execute"].Requests).To(Equal(int64(2)))
			Expect(snap.Routes["/history"].Requests).To(Equal(int64(1)))
		})
	})

	Describe("RecordFailure and RecordRejected", func() {
		It("should be tracked separately from requests", func() {
			m.IncrementRequests("/execute")
			m.RecordFailure("/execute")
			m.RecordRejected("/clear-history")

			snap := m.Snapshot()
			Expect(snap.Routes["/execute"].Failures).To(Equal(int64(1)))
			Expect(snap.Routes["/clear-history"].Rejected).To(Equal(int64(1)))
			Expect(snap.TotalRequests).To(Equal(int64(1)))
		})
	})

	Describe("RecordResponse", func() {
		It("should record response time and status code", func() {
			m.RecordResponse("/execute", 100*time.Millisecond, 200)
			m.RecordResponse("/execute", 200*time.Millisecond, 502)

			route := m.Snapshot().Routes["/execute"]
			Expect(route.AvgResponse).To(Equal(150 * time.Millisecond))
			Expect(route.StatusCodes[200]).To(Equal(int64(1)))
			Expect(route.StatusCodes[502]).To(Equal(int64(1)))
		})

		It("should calculate percentiles", func() {
			for i := 1; i <= 100; i++ {
				m.RecordResponse("/history", time.Duration(i)*time.Millisecond, 200)
			}

			route := m.Snapshot().Routes["/history"]
			Expect(route.P50Response).To(BeNumerically("~", 50*time.Millisecond, time.Millisecond))
			Expect(route.P95Response).To(BeNumerically("~", 95*time.Millisecond, time.Millisecond))
			Expect(route.P99Response).To(BeNumerically("~", 99*time.Millisecond, time.Millisecond))
		})

		It("should keep only the latest samples", func() {
			for i := 1; i <= 1500; i++ {
				m.RecordResponse("/history", time.Duration(i)*time.Millisecond, 200)
			}

			Expect(m.Snapshot().Routes["/history"].AvgResponse).To(BeNumerically(">", 500*time.Millisecond))
		})
	})

	Describe("UpdateHealthStatus", func() {
		It("should track the latest health per upstream", func() {
			m.UpdateHealthStatus("http://localhost:5000", true)
			Expect(m.Snapshot().Upstreams["http://localhost:5000"].Healthy).To(BeTrue())

			m.UpdateHealthStatus("http://localhost:5000", false)
			Expect(m.Snapshot().Upstreams["http://localhost:5000"].Healthy).To(BeFalse())
		})
	})

	Describe("Snapshot", func() {
		It("should handle empty metrics", func() {
			snap := m.Snapshot()
			Expect(snap.TotalRequests).To(BeZero())
			Expect(snap.Routes).To(BeEmpty())
			Expect(snap.Upstreams).To(BeEmpty())
		})

		It("should not share status code maps with later updates", func() {
			m.RecordResponse("/execute", time.Millisecond, 200)
			snap := m.Snapshot()
			m.RecordResponse("/execute", time.Millisecond, 200)

			Expect(snap.Routes["/execute"].StatusCodes[200]).To(Equal(int64(1)))
		})
	})
})
