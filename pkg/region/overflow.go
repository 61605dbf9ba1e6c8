package region

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/meridiandb/meridian/pkg/colstore"
	"github.com/meridiandb/meridian/pkg/errors"
	"github.com/meridiandb/meridian/pkg/logger"
	"github.com/meridiandb/meridian/pkg/pool"
	"github.com/meridiandb/meridian/pkg/region/mmapio"
)

// Overflow record layout: magic, kind, payload length, payload crc, then
// the payload bytes. The id handed back to callers points at the record
// start so reads can re-validate the frame.
const (
	recordMagic      uint32 = 0xC01A5EED
	recordHeaderSize        = 13
)

// OverflowStore is the append-only segment file store that spilled
// column buffers land in. The active segment takes appends and serves
// reads through plain pread; once a segment rolls it is sealed and
// served through a cached memory mapping.
type OverflowStore struct {
	dir      string
	rollSize int64
	syncEach bool

	mu       sync.Mutex
	active   *os.File
	activeID uint32
	offset   int64
	sealed   map[uint32]*mmapio.Reader
}

// DefaultRollSize is the segment size at which the active file seals.
const DefaultRollSize = 64 << 20

// OpenOverflowStore creates or reuses the overflow directory and opens a
// fresh active segment. syncEach forces an fsync after every append.
func OpenOverflowStore(dir string, rollSize int64, syncEach bool) (*OverflowStore, error) {
	if rollSize <= 0 {
		rollSize = DefaultRollSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDiskAccess, "create overflow directory")
	}
	s := &OverflowStore{
		dir:      dir,
		rollSize: rollSize,
		syncEach: syncEach,
		sealed:   make(map[uint32]*mmapio.Reader),
	}
	if err := s.openSegment(s.nextSegmentID()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *OverflowStore) nextSegmentID() uint32 {
	// Segment ids only need to be unique within one store lifetime;
	// recovery rewrites entries wholesale.
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 1
	}
	max := uint32(0)
	for _, e := range entries {
		var id uint32
		if _, err := fmt.Sscanf(e.Name(), "overflow-%06d.ovf", &id); err == nil && id > max {
			max = id
		}
	}
	return max + 1
}

func (s *OverflowStore) segmentPath(id uint32) string {
	return filepath.Join(s.dir, fmt.Sprintf("overflow-%06d.ovf", id))
}

func (s *OverflowStore) openSegment(id uint32) error {
	f, err := os.OpenFile(s.segmentPath(id), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeDiskAccess, "open overflow segment")
	}
	s.active = f
	s.activeID = id
	s.offset = 0
	return nil
}

// Append writes one spilled payload and returns its disk id. A nil or
// empty payload writes a tombstone record.
func (s *OverflowStore) Append(kind colstore.Kind, payload []byte) (*DiskID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return nil, errors.New(errors.ErrorTypeRegionDestroyed, "overflow store closed")
	}

	var hdr [recordHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], recordMagic)
	hdr[4] = byte(kind)
	binary.LittleEndian.PutUint32(hdr[5:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[9:], crc32.ChecksumIEEE(payload))

	// Assemble the record in pooled scratch so header and payload land
	// in one write.
	rec := pool.GetScratch(pool.Medium)
	defer pool.PutScratch(rec, pool.Medium)
	rec.Write(hdr[:])
	rec.Write(payload)

	start := s.offset
	if _, err := s.active.Write(rec.Bytes()); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDiskAccess, "append overflow record")
	}
	if s.syncEach {
		if err := s.active.Sync(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDiskAccess, "sync overflow segment")
		}
	}
	s.offset += int64(recordHeaderSize + len(payload))

	id := &DiskID{Segment: s.activeID, Offset: start, Length: uint32(len(payload))}

	if s.offset >= s.rollSize {
		if err := s.roll(); err != nil {
			return nil, err
		}
	}
	return id, nil
}

func (s *OverflowStore) roll() error {
	if err := s.active.Sync(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeDiskAccess, "sync overflow segment")
	}
	if err := s.active.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeDiskAccess, "close overflow segment")
	}
	logger.Debug("overflow segment sealed",
		zap.Uint32("segment", s.activeID), zap.Int64("bytes", s.offset))
	return s.openSegment(s.activeID + 1)
}

// Read returns the payload and kind recorded under id. The returned
// slice is always a private copy. A tombstone record reads back as a nil
// payload with no error.
func (s *OverflowStore) Read(id *DiskID) (colstore.Kind, []byte, error) {
	s.mu.Lock()
	activeID := s.activeID
	active := s.active
	s.mu.Unlock()

	if active == nil {
		return 0, nil, errors.New(errors.ErrorTypeRegionDestroyed, "overflow store closed")
	}

	frame := make([]byte, recordHeaderSize+int(id.Length))
	if id.Segment == activeID {
		// The active segment is open write-only; read through a second
		// descriptor.
		f, err := os.Open(s.segmentPath(id.Segment))
		if err != nil {
			return 0, nil, errors.Wrap(err, errors.ErrorTypeDiskAccess, "open active overflow segment")
		}
		defer f.Close()
		if _, err := f.ReadAt(frame, id.Offset); err != nil {
			return 0, nil, errors.Wrap(err, errors.ErrorTypeDiskAccess, "read overflow record")
		}
		return s.decodeRecord(id, frame)
	}

	r, err := s.sealedReader(id.Segment)
	if err != nil {
		return 0, nil, err
	}
	view, err := r.ReadAt(id.Offset, len(frame))
	if err != nil {
		return 0, nil, errors.Wrap(err, errors.ErrorTypeDiskAccess, "read overflow record")
	}
	copy(frame, view)
	return s.decodeRecord(id, frame)
}

func (s *OverflowStore) sealedReader(segment uint32) (*mmapio.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.sealed[segment]; ok {
		return r, nil
	}
	r, err := mmapio.Open(s.segmentPath(segment))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDiskAccess, "map sealed overflow segment")
	}
	s.sealed[segment] = r
	return r, nil
}

func (s *OverflowStore) decodeRecord(id *DiskID, frame []byte) (colstore.Kind, []byte, error) {
	if binary.LittleEndian.Uint32(frame) != recordMagic {
		return 0, nil, errors.Newf(errors.ErrorTypeDiskAccess, "overflow record %s has bad magic", id)
	}
	kind := colstore.Kind(frame[4])
	n := binary.LittleEndian.Uint32(frame[5:])
	if n != id.Length {
		return 0, nil, errors.Newf(errors.ErrorTypeDiskAccess,
			"overflow record %s declares %d bytes, id says %d", id, n, id.Length)
	}
	if n == 0 {
		return kind, nil, nil
	}
	payload := frame[recordHeaderSize:]
	if crc := crc32.ChecksumIEEE(payload); crc != binary.LittleEndian.Uint32(frame[9:]) {
		return 0, nil, errors.Newf(errors.ErrorTypeDiskAccess, "overflow record %s failed checksum", id)
	}
	return kind, payload, nil
}

// Close seals the store. Outstanding reads fail afterwards.
func (s *OverflowStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	if s.active != nil {
		if err := s.active.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := s.active.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.active = nil
	}
	for id, r := range s.sealed {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.sealed, id)
	}
	return firstErr
}
