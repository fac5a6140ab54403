package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "postureguard"

type Metrics struct {
	FramesProcessed     *prometheus.CounterVec
	FramesNoDetection   *prometheus.CounterVec
	DetectErrors        *prometheus.CounterVec
	FramesDropped       *prometheus.GaugeVec
	SourceConnected     *prometheus.GaugeVec
	CalibrationProgress *prometheus.GaugeVec
	PoorPosture         *prometheus.GaugeVec
	Alerts              *prometheus.CounterVec
	RecordsSaved        prometheus.Counter
	RecordsDropped      *prometheus.CounterVec
}

// NewMetrics builds the engine collectors and registers them on reg when it
// is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_processed_total",
			Help:      "Frames taken from a camera and sent to pose estimation",
		}, []string{"role"}),
		FramesNoDetection: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_no_detection_total",
			Help:      "Frames in which no body was found",
		}, []string{"role"}),
		DetectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "detect_errors_total",
			Help:      "Pose estimation calls that failed",
		}, []string{"role"}),
		FramesDropped: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "frames_dropped",
			Help:      "Frames evicted from the camera channel before being read",
		}, []string{"role"}),
		SourceConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "source_connected",
			Help:      "1 while the camera source is open",
		}, []string{"role"}),
		CalibrationProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "calibration_samples",
			Help:      "Samples collected toward the calibration target",
		}, []string{"role"}),
		PoorPosture: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "poor_posture",
			Help:      "1 while poor posture is confirmed",
		}, []string{"role"}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "alerts_total",
			Help:      "Alerts let through the cooldown",
		}, []string{"role"}),
		RecordsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_saved_total",
			Help:      "Posture records written to storage",
		}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_dropped_total",
			Help:      "Posture records that never reached storage",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.FramesProcessed,
			m.FramesNoDetection,
			m.DetectErrors,
			m.FramesDropped,
			m.SourceConnected,
			m.CalibrationProgress,
			m.PoorPosture,
			m.Alerts,
			m.RecordsSaved,
			m.RecordsDropped,
		)
	}
	return m
}
