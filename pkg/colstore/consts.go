package colstore

// Reserved column indexes. Values at and below StatsRowColumnIndex hold
// per-batch bookkeeping rather than table data.
const (
	// StatsRowColumnIndex holds the per-batch stats row
	StatsRowColumnIndex int32 = -1
	// DeltaStatsRowColumnIndex holds the stats row for an un-merged delta
	DeltaStatsRowColumnIndex int32 = -2
	// DeleteMaskColumnIndex holds the delete bitmap. This must remain the
	// numerically smallest reserved index; iterator arithmetic offsets
	// column positions by it.
	DeleteMaskColumnIndex int32 = -3
)

// MaxConsecutiveCompressions is the number of compression attempts a
// decompressed buffer absorbs before a further attempt may replace the
// stored form.
const MaxConsecutiveCompressions = 2

// TrimThreshold is the minimum unused capacity, in bytes, that triggers
// a compact copy when a compressed buffer is kept.
const TrimThreshold = 32

// Wire framing bytes. Every serialized value leads with the fixed
// sentinel, the store type byte and the kind id, so a stream carrying
// mixed entry kinds stays self-describing.
const (
	wireFixedID   byte = 0x3B
	wireStoreType byte = 0x24
)

// Kind distinguishes the serialized value kinds sharing one layout.
type Kind uint8

const (
	// KindValue is a full column batch cell
	KindValue Kind = iota
	// KindDelta is an un-merged column delta
	KindDelta
	// KindDeleteDelta is a delete mask delta
	KindDeleteDelta
)

const (
	wireIDValue       byte = 0x47
	wireIDDelta       byte = 0x48
	wireIDDeleteDelta byte = 0x49
)

func (k Kind) wireID() byte {
	switch k {
	case KindDelta:
		return wireIDDelta
	case KindDeleteDelta:
		return wireIDDeleteDelta
	default:
		return wireIDValue
	}
}

func kindFromWireID(b byte) (Kind, bool) {
	switch b {
	case wireIDValue:
		return KindValue, true
	case wireIDDelta:
		return KindDelta, true
	case wireIDDeleteDelta:
		return KindDeleteDelta, true
	default:
		return KindValue, false
	}
}

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindDelta:
		return "delta"
	case KindDeleteDelta:
		return "delete-delta"
	default:
		return "value"
	}
}

// Synthetic per-object overheads used by size accounting. They estimate
// the container and buffer wrapper footprint so region sizing stays
// stable regardless of reference counts or buffer residency.
const (
	valueObjectOverhead   = 64
	bufferWrapperOverhead = 48
)
