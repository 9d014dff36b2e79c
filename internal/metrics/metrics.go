package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kiosk"

// Outcome labels for resolutions.
const (
	OutcomeResolved = "resolved"
	OutcomeFailed   = "failed"
	OutcomeStale    = "stale"
)

type Recorder struct {
	scans           *prometheus.CounterVec
	dropped         prometheus.Counter
	resolutions     *prometheus.CounterVec
	resolveDuration prometheus.Histogram
	cameraFallbacks prometheus.Counter
	sourceSwitches  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Decoded values handed to the resolution pipeline",
		}, []string{"source"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_dropped_total",
			Help:      "Decoded values discarded because a resolution was in progress",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Finished resolutions by outcome",
		}, []string{"outcome"}),
		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_duration_seconds",
			Help:      "Time spent resolving a decoded value",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10},
		}),
		cameraFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "camera_fallbacks_total",
			Help:      "Automatic switches from camera to HID input",
		}),
		sourceSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_switches_total",
			Help:      "Input source activations",
		}, []string{"source"}),
	}

	collectors := []prometheus.Collector{
		r.scans, r.dropped, r.resolutions, r.resolveDuration, r.cameraFallbacks, r.sourceSwitches,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Recorder) Scan(source string) {
	r.scans.WithLabelValues(source).Inc()
}

func (r *Recorder) Dropped() {
	r.dropped.Inc()
}

func (r *Recorder) Resolution(outcome string, elapsed time.Duration) {
	r.resolutions.WithLabelValues(outcome).Inc()
	r.resolveDuration.Observe(elapsed.Seconds())
}

func (r *Recorder) CameraFallback() {
	r.cameraFallbacks.Inc()
}

func (r *Recorder) SourceSwitch(source string) {
	r.sourceSwitches.WithLabelValues(source).Inc()
}
