// Package metrics exposes game and connection counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the recorder interfaces of the game, socket and word layers.
type Collector struct {
	sessionsStarted    prometheus.Counter
	roundsStarted      prometheus.Counter
	roundsEnded        *prometheus.CounterVec
	gamesEnded         *prometheus.CounterVec
	transitionsDropped prometheus.Counter
	departures         *prometheus.CounterVec
	guesses            *prometheus.CounterVec
	connections        prometheus.Gauge
	wordFallbacks      *prometheus.CounterVec
	archiveFailures    prometheus.Counter
}

// NewCollector registers every metric on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doodle_sessions_started_total",
			Help: "Games started by a host",
		}),
		roundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doodle_rounds_started_total",
			Help: "Rounds that entered the drawing phase",
		}),
		roundsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doodle_rounds_ended_total",
			Help: "Rounds ended, by trigger",
		}, []string{"trigger"}),
		gamesEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doodle_games_ended_total",
			Help: "Games finished, by reason",
		}, []string{"reason"}),
		transitionsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doodle_transitions_dropped_total",
			Help: "Duplicate round end triggers absorbed without effect",
		}),
		departures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doodle_departures_total",
			Help: "Participants removed after their grace period",
		}, []string{"drawer"}),
		guesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doodle_guesses_total",
			Help: "Guesses evaluated, by outcome",
		}, []string{"outcome"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "doodle_ws_connections",
			Help: "Open game sockets",
		}),
		wordFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doodle_word_fallbacks_total",
			Help: "Word service calls answered from the local table",
		}, []string{"op"}),
		archiveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doodle_archive_failures_total",
			Help: "Finished games that could not be archived",
		}),
	}

	reg.MustRegister(
		c.sessionsStarted,
		c.roundsStarted,
		c.roundsEnded,
		c.gamesEnded,
		c.transitionsDropped,
		c.departures,
		c.guesses,
		c.connections,
		c.wordFallbacks,
		c.archiveFailures,
	)
	return c
}

func (c *Collector) SessionStarted()           { c.sessionsStarted.Inc() }
func (c *Collector) RoundStarted()             { c.roundsStarted.Inc() }
func (c *Collector) RoundEnded(trigger string) { c.roundsEnded.WithLabelValues(trigger).Inc() }
func (c *Collector) GameEnded(reason string)   { c.gamesEnded.WithLabelValues(reason).Inc() }
func (c *Collector) TransitionDropped()        { c.transitionsDropped.Inc() }

func (c *Collector) Departed(wasDrawer bool) {
	label := "false"
	if wasDrawer {
		label = "true"
	}
	c.departures.WithLabelValues(label).Inc()
}

func (c *Collector) GuessChecked(outcome string) { c.guesses.WithLabelValues(outcome).Inc() }

// ConnectionOpened and ConnectionClosed track live sockets.
func (c *Collector) ConnectionOpened() { c.connections.Inc() }
func (c *Collector) ConnectionClosed() { c.connections.Dec() }

// WordFallback counts word service calls served by the local table.
func (c *Collector) WordFallback(op string) { c.wordFallbacks.WithLabelValues(op).Inc() }

// ArchiveFailed counts games the archive could not store.
func (c *Collector) ArchiveFailed() { c.archiveFailures.Inc() }

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
