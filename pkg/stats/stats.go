// Package stats collects the protocol counters described in the spec's
// data model, one set per link-layer engine. Each counter is mirrored into a private
// Prometheus registry the way the pack's TCP-info exporters
// (runZeroInc-conniver, runZeroInc-sockstats) expose their per-event
// counters through github.com/prometheus/client_golang, so rdlink's
// counters can be scraped the same way. Correctness of the protocol
// never depends on these counters; they exist for the close-time
// summary and for scraping through Registry/Handler.
package stats

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Counters is a snapshot of every statistic the spec names.
type Counters struct {
	SetSent, SetReceived   int
	UASent, UAReceived     int
	RRSent, RRReceived     int
	REJSent, REJReceived   int
	ISent, IReceived       int
	DISCSent, DISCReceived int
	InvalidBCC1            int
	InvalidBCC2            int
	Duplicated             int
	Retransmissions        int
	Timeouts               int
}

const (
	kindSet  = "set"
	kindUA   = "ua"
	kindRR   = "rr"
	kindREJ  = "rej"
	kindI    = "i"
	kindDISC = "disc"
)

// Stats is the mutable counter set owned by one link-layer engine.
// Every Inc* call updates the plain integer fields Snapshot reads back
// directly (no gather-and-convert round trip on the hot path) and ticks
// the same-named series in a private prometheus.Registry, so the engine
// can be scraped without touching process-global state shared across
// engines or tests.
type Stats struct {
	c Counters

	registry *prometheus.Registry
	sent     *prometheus.CounterVec
	received *prometheus.CounterVec
	errors   *prometheus.CounterVec
}

// New returns a zeroed Stats with its own Prometheus registry.
func New() *Stats {
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdlink",
		Name:      "frames_sent_total",
		Help:      "Link-layer frames sent, by kind.",
	}, []string{"kind"})
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdlink",
		Name:      "frames_received_total",
		Help:      "Link-layer frames received, by kind.",
	}, []string{"kind"})
	errors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdlink",
		Name:      "errors_total",
		Help:      "Protocol error and recovery events, by kind.",
	}, []string{"kind"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(sent, received, errors)

	return &Stats{registry: registry, sent: sent, received: received, errors: errors}
}

func (s *Stats) IncSetSent()     { s.c.SetSent++; s.sent.WithLabelValues(kindSet).Inc() }
func (s *Stats) IncSetReceived() { s.c.SetReceived++; s.received.WithLabelValues(kindSet).Inc() }
func (s *Stats) IncUASent()      { s.c.UASent++; s.sent.WithLabelValues(kindUA).Inc() }
func (s *Stats) IncUAReceived()  { s.c.UAReceived++; s.received.WithLabelValues(kindUA).Inc() }
func (s *Stats) IncRRSent()      { s.c.RRSent++; s.sent.WithLabelValues(kindRR).Inc() }
func (s *Stats) IncRRReceived()  { s.c.RRReceived++; s.received.WithLabelValues(kindRR).Inc() }
func (s *Stats) IncREJSent()     { s.c.REJSent++; s.sent.WithLabelValues(kindREJ).Inc() }
func (s *Stats) IncREJReceived() { s.c.REJReceived++; s.received.WithLabelValues(kindREJ).Inc() }
func (s *Stats) IncISent()       { s.c.ISent++; s.sent.WithLabelValues(kindI).Inc() }
func (s *Stats) IncIReceived()   { s.c.IReceived++; s.received.WithLabelValues(kindI).Inc() }
func (s *Stats) IncDISCSent()    { s.c.DISCSent++; s.sent.WithLabelValues(kindDISC).Inc() }
func (s *Stats) IncDISCReceived() {
	s.c.DISCReceived++
	s.received.WithLabelValues(kindDISC).Inc()
}

func (s *Stats) IncInvalidBCC1() { s.c.InvalidBCC1++; s.errors.WithLabelValues("invalid_bcc1").Inc() }
func (s *Stats) IncInvalidBCC2() { s.c.InvalidBCC2++; s.errors.WithLabelValues("invalid_bcc2").Inc() }
func (s *Stats) IncDuplicated()  { s.c.Duplicated++; s.errors.WithLabelValues("duplicated").Inc() }
func (s *Stats) IncRetransmissions() {
	s.c.Retransmissions++
	s.errors.WithLabelValues("retransmission").Inc()
}
func (s *Stats) IncTimeouts() { s.c.Timeouts++; s.errors.WithLabelValues("timeout").Inc() }

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Counters {
	return s.c
}

// Registry exposes the private Prometheus registry backing these
// counters, for a caller that wants to fold it into a larger process
// registry instead of using Handler directly.
func (s *Stats) Registry() *prometheus.Registry {
	return s.registry
}

// Handler serves these counters in the standard Prometheus text
// exposition format, for mounting under e.g. /metrics.
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// String renders a human-readable summary, used when the application
// passes a truthy "show" flag to Close. It encodes the same registered
// families Handler would serve, in the standard text exposition format,
// so the close-time log and a scrape never disagree.
func (s *Stats) String() string {
	families, err := s.registry.Gather()
	if err != nil {
		return fmt.Sprintf("stats: failed to gather: %v", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Sprintf("stats: failed to encode: %v", err)
		}
	}
	return buf.String()
}
