package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type RewardsMetrics struct {
	pointsCredited *prometheus.CounterVec
	levelUps       prometheus.Counter
	badgesAwarded  *prometheus.CounterVec
	completions    *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

var (
	rewardsOnce     sync.Once
	rewardsRegistry *RewardsMetrics
)

// Rewards returns the lazily registered reward engine metrics.
func Rewards() *RewardsMetrics {
	rewardsOnce.Do(func() {
		rewardsRegistry = newRewardsMetrics()
		prometheus.MustRegister(
			rewardsRegistry.pointsCredited,
			rewardsRegistry.levelUps,
			rewardsRegistry.badgesAwarded,
			rewardsRegistry.completions,
			rewardsRegistry.rejections,
			rewardsRegistry.latency,
		)
	})
	return rewardsRegistry
}

func newRewardsMetrics() *RewardsMetrics {
	return &RewardsMetrics{
		pointsCredited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poolquest",
			Subsystem: "progression",
			Name:      "points_credited_total",
			Help:      "Points credited segmented by source (liquidity, swap, grant).",
		}, []string{"source"}),
		levelUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "poolquest",
			Subsystem: "progression",
			Name:      "level_ups_total",
			Help:      "Number of level-up transitions.",
		}),
		badgesAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poolquest",
			Subsystem: "progression",
			Name:      "badges_awarded_total",
			Help:      "Badges unlocked segmented by source.",
		}, []string{"source"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poolquest",
			Subsystem: "challenges",
			Name:      "completions_total",
			Help:      "Challenge and quest completions segmented by kind.",
		}, []string{"kind"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poolquest",
			Subsystem: "processor",
			Name:      "rejections_total",
			Help:      "Rejected calls segmented by operation and reason.",
		}, []string{"operation", "reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "poolquest",
			Subsystem: "processor",
			Name:      "call_duration_seconds",
			Help:      "Latency distribution for processor calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func normalize(label string) string {
	label = strings.TrimSpace(strings.ToLower(label))
	if label == "" {
		return "unknown"
	}
	return label
}

// AddPoints records points credited from source. Fractional precision is
// irrelevant for dashboards so the value is passed as a float.
func (m *RewardsMetrics) AddPoints(source string, points float64) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsCredited.WithLabelValues(normalize(source)).Add(points)
}

func (m *RewardsMetrics) IncLevelUp() {
	if m == nil {
		return
	}
	m.levelUps.Inc()
}

func (m *RewardsMetrics) IncBadge(source string) {
	if m == nil {
		return
	}
	m.badgesAwarded.WithLabelValues(normalize(source)).Inc()
}

func (m *RewardsMetrics) IncCompletion(kind string) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(normalize(kind)).Inc()
}

func (m *RewardsMetrics) IncRejection(operation, reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(normalize(operation), normalize(reason)).Inc()
}

func (m *RewardsMetrics) ObserveCall(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(normalize(operation)).Observe(duration.Seconds())
}
