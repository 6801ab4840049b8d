// SPDX-License-Identifier: MIT
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poll loop
	pollTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camsync_poll_ticks_total",
		Help: "Poll ticks by outcome",
	}, []string{"outcome"}) // outcome=ok|too_soon|busy|status_failed

	pollFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camsync_poll_failures_total",
		Help: "Device query failures by stage",
	}, []string{"stage"}) // stage=status|identity|catalog

	pollTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "camsync_poll_tick_duration_seconds",
		Help:    "Wall time spent in one poll tick",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	lastSuccessfulPoll = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "camsync_last_successful_poll_timestamp_seconds",
		Help: "Unix time of the last tick whose status query succeeded",
	})

	operatingState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "camsync_operating_state",
		Help: "Current derived operating state (1 for the active state)",
	}, []string{"state"})

	alarmLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "camsync_alarm_level",
		Help: "Raw alarm level reported by the device (0 off, 1 armed, 2 triggered)",
	}, []string{"alarm"})

	// Catalog
	catalogRebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camsync_catalog_rebuilds_total",
		Help: "Catalog rebuilds by outcome and trigger",
	}, []string{"outcome", "trigger"}) // outcome=ok|failed trigger=interval|forced

	catalogEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "camsync_catalog_entries",
		Help: "Recordings in the current catalog",
	})

	catalogCapturedToday = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "camsync_catalog_captured_today",
		Help: "Recordings captured today according to the current catalog",
	})

	catalogSkippedFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camsync_catalog_skipped_files_total",
		Help: "Remote files skipped while building the catalog",
	}, []string{"reason"}) // reason=unparseable|duplicate

	// Sync
	syncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camsync_sync_total",
		Help: "Recording sync attempts by outcome",
	}, []string{"outcome"})

	syncSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camsync_sync_skips_total",
		Help: "Entries skipped by the stability gate",
	}, []string{"reason"}) // reason=missing|too_new|empty|growing

	transcodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "camsync_transcode_duration_seconds",
		Help:    "Time spent transcoding one recording",
		Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 160, 320},
	})

	transferBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camsync_transfer_bytes_total",
		Help: "Bytes pulled from the device",
	}, []string{"kind"}) // kind=recording|thumbnail

	// Publishing
	publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camsync_publish_total",
		Help: "Snapshot publications by sink and outcome",
	}, []string{"sink", "outcome"})

	// Resilience
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "camsync_circuit_breaker_state",
		Help: "Circuit breaker state (1 for the active state)",
	}, []string{"name", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camsync_circuit_breaker_trips_total",
		Help: "Circuit breaker trips by reason",
	}, []string{"name", "reason"})
)

var operatingStates = []string{"idle", "recording", "motion", "recently-active"}

func IncPollTick(outcome string)          { pollTicksTotal.WithLabelValues(outcome).Inc() }
func IncPollFailure(stage string)         { pollFailuresTotal.WithLabelValues(stage).Inc() }
func ObservePollTick(d time.Duration)     { pollTickDuration.Observe(d.Seconds()) }
func SetLastSuccessfulPoll(t time.Time)   { lastSuccessfulPoll.Set(float64(t.Unix())) }
func SetAlarmLevel(alarm string, lvl int) { alarmLevel.WithLabelValues(alarm).Set(float64(lvl)) }

// SetOperatingState marks state as the active one.
func SetOperatingState(state string) {
	for _, s := range operatingStates {
		v := 0.0
		if s == state {
			v = 1
		}
		operatingState.WithLabelValues(s).Set(v)
	}
}

func IncCatalogRebuild(outcome, trigger string) {
	catalogRebuildsTotal.WithLabelValues(outcome, trigger).Inc()
}

func RecordCatalog(entries, today int) {
	catalogEntries.Set(float64(entries))
	catalogCapturedToday.Set(float64(today))
}

func IncCatalogSkippedFile(reason string) { catalogSkippedFiles.WithLabelValues(reason).Inc() }

func IncSync(outcome string)                { syncTotal.WithLabelValues(outcome).Inc() }
func IncSyncSkip(reason string)             { syncSkipsTotal.WithLabelValues(reason).Inc() }
func ObserveTranscode(d time.Duration)      { transcodeDuration.Observe(d.Seconds()) }
func AddTransferBytes(kind string, n int64) { transferBytes.WithLabelValues(kind).Add(float64(n)) }
func IncPublish(sink, outcome string)       { publishTotal.WithLabelValues(sink, outcome).Inc() }
func RecordCircuitBreakerTrip(name, reason string) {
	circuitBreakerTrips.WithLabelValues(name, reason).Inc()
}

// SetCircuitBreakerState marks state as the active one for breaker name.
func SetCircuitBreakerState(name, state string) {
	for _, s := range []string{"closed", "open", "half-open"} {
		v := 0.0
		if s == state {
			v = 1
		}
		circuitBreakerState.WithLabelValues(name, s).Set(v)
	}
}
