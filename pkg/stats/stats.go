// Package stats provides performance tracking for the column storage
// layer using Prometheus metrics. It offers counters for compression and
// decompression work, disk recall activity, and buffer accounting, with
// nanosecond timing in the style of a cache performance statistics block.
//
// # Basic Usage
//
//	st := stats.NewCachePerfStats("orders")
//	start := st.StartCompression()
//	// ... run the codec ...
//	st.EndCompression(start)
//
// Metrics are designed to have minimal overhead: label lookups happen
// once at construction and recording is a single atomic add.
package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	compressions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meridian",
		Subsystem: "colstore",
		Name:      "compressions_total",
		Help:      "Total column buffer compressions performed",
	}, []string{"region"})

	compressionNanos = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meridian",
		Subsystem: "colstore",
		Name:      "compression_nanos_total",
		Help:      "Total nanoseconds spent compressing column buffers",
	}, []string{"region"})

	compressionsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meridian",
		Subsystem: "colstore",
		Name:      "compressions_skipped_total",
		Help:      "Compressions skipped because the codec did not shrink the payload",
	}, []string{"region"})

	decompressions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meridian",
		Subsystem: "colstore",
		Name:      "decompressions_total",
		Help:      "Total column buffer decompressions performed",
	}, []string{"region"})

	decompressionNanos = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meridian",
		Subsystem: "colstore",
		Name:      "decompression_nanos_total",
		Help:      "Total nanoseconds spent decompressing column buffers",
	}, []string{"region"})

	stateDisagreements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meridian",
		Subsystem: "colstore",
		Name:      "state_disagreements_total",
		Help:      "Entries whose recorded compression state disagreed with the payload bytes",
	}, []string{"region"})

	diskRecalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meridian",
		Subsystem: "colstore",
		Name:      "disk_recalls_total",
		Help:      "Column buffers re-materialized from the overflow store",
	}, []string{"region"})

	diskRecallAbsent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meridian",
		Subsystem: "colstore",
		Name:      "disk_recall_absent_total",
		Help:      "Disk recalls that resolved to an absent entry",
	}, []string{"region"})

	memoryBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "meridian",
		Subsystem: "colstore",
		Name:      "region_memory_bytes",
		Help:      "Estimated bytes of column buffers held by a region",
	}, []string{"region"})
)

// CachePerfStats records compression, decompression and recall activity
// for one region. All methods are safe for concurrent use; a nil receiver
// is a no-op so callers never need to guard recording sites.
type CachePerfStats struct {
	compressions        prometheus.Counter
	compressionNanos    prometheus.Counter
	compressionsSkipped prometheus.Counter
	decompressions      prometheus.Counter
	decompressionNanos  prometheus.Counter
	stateDisagreements  prometheus.Counter
	diskRecalls         prometheus.Counter
	diskRecallAbsent    prometheus.Counter
	memoryBytes         prometheus.Gauge
}

// NewCachePerfStats creates a stats block labeled with the region name.
func NewCachePerfStats(region string) *CachePerfStats {
	return &CachePerfStats{
		compressions:        compressions.WithLabelValues(region),
		compressionNanos:    compressionNanos.WithLabelValues(region),
		compressionsSkipped: compressionsSkipped.WithLabelValues(region),
		decompressions:      decompressions.WithLabelValues(region),
		decompressionNanos:  decompressionNanos.WithLabelValues(region),
		stateDisagreements:  stateDisagreements.WithLabelValues(region),
		diskRecalls:         diskRecalls.WithLabelValues(region),
		diskRecallAbsent:    diskRecallAbsent.WithLabelValues(region),
		memoryBytes:         memoryBytes.WithLabelValues(region),
	}
}

// StartCompression returns the start timestamp for a compression.
func (s *CachePerfStats) StartCompression() int64 {
	if s == nil {
		return 0
	}
	return time.Now().UnixNano()
}

// EndCompression records a completed compression begun at start.
func (s *CachePerfStats) EndCompression(start int64) {
	if s == nil {
		return
	}
	s.compressions.Inc()
	s.compressionNanos.Add(float64(time.Now().UnixNano() - start))
}

// CompressionSkipped records a compression whose output did not shrink
// enough to keep.
func (s *CachePerfStats) CompressionSkipped() {
	if s == nil {
		return
	}
	s.compressionsSkipped.Inc()
}

// StartDecompression returns the start timestamp for a decompression.
func (s *CachePerfStats) StartDecompression() int64 {
	if s == nil {
		return 0
	}
	return time.Now().UnixNano()
}

// EndDecompression records a completed decompression begun at start.
func (s *CachePerfStats) EndDecompression(start int64) {
	if s == nil {
		return
	}
	s.decompressions.Inc()
	s.decompressionNanos.Add(float64(time.Now().UnixNano() - start))
}

// StateDisagreement records an entry whose leading payload bytes did not
// match its recorded compression state.
func (s *CachePerfStats) StateDisagreement() {
	if s == nil {
		return
	}
	s.stateDisagreements.Inc()
}

// DiskRecall records a buffer re-materialized from the overflow store.
func (s *CachePerfStats) DiskRecall() {
	if s == nil {
		return
	}
	s.diskRecalls.Inc()
}

// DiskRecallAbsent records a recall that resolved to an absent entry.
func (s *CachePerfStats) DiskRecallAbsent() {
	if s == nil {
		return
	}
	s.diskRecallAbsent.Inc()
}

// AddMemoryBytes adjusts the region's estimated buffer memory gauge.
func (s *CachePerfStats) AddMemoryBytes(delta int64) {
	if s == nil {
		return
	}
	s.memoryBytes.Add(float64(delta))
}
