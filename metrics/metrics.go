// Package metrics wraps the Prometheus counters and gauges
// SessionCipher reports against, so callers can scrape encrypt/decrypt
// volume, ratchet churn, and session retirement without instrumenting
// cipher.SessionCipher itself.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector is the metrics surface cipher.SessionCipher writes to. A
// nil *Collector is valid and every method becomes a no-op, matching
// the "storage is optional, memory default" shape the rest of this
// module follows for its collaborators.
type Collector struct {
	encryptTotal    *prometheus.CounterVec
	decryptTotal    *prometheus.CounterVec
	ratchetSteps    prometheus.Counter
	sessionsRetired prometheus.Counter
	queueDepth      *prometheus.GaugeVec
}

// New registers and returns a Collector against reg. Passing
// prometheus.NewRegistry() keeps these metrics out of the global
// default registry, useful for tests that construct more than one
// Collector in the same process.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		encryptTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalcore_encrypt_total",
			Help: "Number of SessionCipher.Encrypt calls, labeled by remote address.",
		}, []string{"address"}),
		decryptTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalcore_decrypt_total",
			Help: "Number of SessionCipher decrypt calls, labeled by remote address and result.",
		}, []string{"address", "result"}),
		ratchetSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalcore_ratchet_steps_total",
			Help: "Number of DH ratchet steps performed across all sessions.",
		}),
		sessionsRetired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalcore_sessions_retired_total",
			Help: "Number of retired sessions evicted by SessionRecord.RemoveOldSessions.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "signalcore_job_queue_depth",
			Help: "Depth of the per-address job queue, sampled on enqueue.",
		}, []string{"address"}),
	}
	reg.MustRegister(c.encryptTotal, c.decryptTotal, c.ratchetSteps, c.sessionsRetired, c.queueDepth)
	return c
}

// Noop returns a Collector whose methods do nothing. Equivalent to a
// nil *Collector; provided so callers can write `metrics.Noop()`
// instead of a bare nil when that reads better at the call site.
func Noop() *Collector { return nil }

// EncryptCalled records one SessionCipher.Encrypt invocation for address.
func (c *Collector) EncryptCalled(address string) {
	if c == nil {
		return
	}
	c.encryptTotal.WithLabelValues(address).Inc()
}

// DecryptResult records one decrypt outcome ("ok" or "error") for address.
func (c *Collector) DecryptResult(address string, ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	c.decryptTotal.WithLabelValues(address, result).Inc()
}

// RatchetStepped records one DH ratchet step.
func (c *Collector) RatchetStepped() {
	if c == nil {
		return
	}
	c.ratchetSteps.Inc()
}

// SessionRetired records one session evicted by retirement policy.
func (c *Collector) SessionRetired() {
	if c == nil {
		return
	}
	c.sessionsRetired.Inc()
}

// QueueDepthSampled records the observed job queue depth for address
// at the moment a job was enqueued.
func (c *Collector) QueueDepthSampled(address string, depth int) {
	if c == nil {
		return
	}
	c.queueDepth.WithLabelValues(address).Set(float64(depth))
}
