package colstore

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/meridiandb/meridian/pkg/buffer"
	"github.com/meridiandb/meridian/pkg/codec"
	"github.com/meridiandb/meridian/pkg/errors"
)

// wireHeaderLen is the full framing header: sentinel, store type, kind
// id, one pad byte, and the 32-bit payload length.
const wireHeaderLen = 8

// WriteOptions controls value serialization.
type WriteOptions struct {
	// SameHost skips compression; loopback channels gain nothing from
	// burning CPU on a payload the peer shares memory with. Non-channel
	// outputs always receive the compressed form.
	SameHost bool

	// Order is the byte order of the length field, matching the
	// channel. Nil defaults to big-endian. Payload bytes are always
	// little-endian regardless.
	Order binary.ByteOrder
}

// WriteTo streams the value to a channel with the full framing header,
// compressing first unless the channel is same-host. The value's
// reference is taken and released internally on every exit path.
func (v *ColumnValue) WriteTo(w io.Writer, opts WriteOptions) error {
	got, err := v.GetValueRetain(false, !opts.SameHost)
	if err != nil {
		return err
	}
	defer got.Release()

	payload := got.Payload()
	order := opts.Order
	if order == nil {
		order = binary.BigEndian
	}

	var hdr [wireHeaderLen]byte
	hdr[0] = wireFixedID
	hdr[1] = wireStoreType
	hdr[2] = v.kind.wireID()
	hdr[3] = 0
	order.PutUint32(hdr[4:], uint32(len(payload)))

	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "write value header")
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return errors.Wrap(err, errors.ErrorTypeIO, "write value payload")
		}
	}
	return nil
}

// WriteToData emits the embedded form used inside an outer serializer
// that supplies its own type prefix: a pad byte, the length and the
// payload. Embedded outputs always receive the compressed form.
func (v *ColumnValue) WriteToData(w io.Writer, order binary.ByteOrder) error {
	got, err := v.GetValueRetain(false, true)
	if err != nil {
		return err
	}
	defer got.Release()

	payload := got.Payload()
	if order == nil {
		order = binary.BigEndian
	}

	var hdr [5]byte
	order.PutUint32(hdr[1:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "write value header")
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return errors.Wrap(err, errors.ErrorTypeIO, "write value payload")
		}
	}
	return nil
}

// WriteSerializationHeader writes the framing header into dst so the
// payload can be streamed separately, straight out of the buffer. It
// returns false when dst has fewer than eight bytes free.
func (v *ColumnValue) WriteSerializationHeader(dst []byte, order binary.ByteOrder) bool {
	if len(dst) < wireHeaderLen {
		return false
	}
	if order == nil {
		order = binary.BigEndian
	}
	dst[0] = wireFixedID
	dst[1] = wireStoreType
	dst[2] = v.kind.wireID()
	dst[3] = 0

	v.mu.Lock()
	n := 0
	if v.buf != nil {
		n = v.buf.Len()
	}
	v.mu.Unlock()

	order.PutUint32(dst[4:], uint32(n))
	return true
}

// FromData installs raw payload bytes produced elsewhere, typically by a
// disk recall. The compression form is taken from the payload's leading
// word: negative means compressed by the named codec.
func (v *ColumnValue) FromData(payload []byte) error {
	if len(payload) == 0 {
		return v.SetBuffer(nil, codec.None, false, false)
	}
	id, compressed := codec.PeekID(payload)
	cid := codec.None
	if compressed {
		if !codec.IsCompressed(id) {
			return errors.Newf(errors.ErrorTypeCorruptValue, "payload names unknown codec id %d", id)
		}
		cid = id
	}
	return v.SetBuffer(v.alloc.WrapHeap(payload), cid, compressed, false)
}

// ReadFrom consumes the embedded form: one pad byte, the payload length
// in the given byte order (nil defaults to big-endian), then the payload
// itself. A zero length leaves the value absent.
func (v *ColumnValue) ReadFrom(r io.Reader, order binary.ByteOrder) error {
	if order == nil {
		order = binary.BigEndian
	}
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "read value header")
	}
	n := int(order.Uint32(hdr[1:]))
	if n == 0 {
		v.mu.Lock()
		v.buf = nil
		v.st = stateNotCompressible
		v.fromDisk = false
		v.mu.Unlock()
		return nil
	}

	ref, err := v.readPayload(r, n)
	if err != nil {
		return err
	}

	b := ref.Bytes()
	id, compressed := codec.PeekID(b)
	cid := codec.None
	if compressed {
		cid = id
	}
	if err := v.SetBuffer(ref, cid, compressed, false); err != nil {
		ref.Release()
		return err
	}
	return nil
}

// readPayload reads n payload bytes by the most efficient path the
// reader supports: zero-copy from memory-backed inputs, a fresh direct
// buffer with backoff retries for socket channels, and a plain bulk read
// otherwise.
func (v *ColumnValue) readPayload(r io.Reader, n int) (*buffer.BufferRef, error) {
	if mr, ok := r.(interface{ Next(int) []byte }); ok {
		b := mr.Next(n)
		if len(b) != n {
			return nil, errors.Newf(errors.ErrorTypeIO, "short payload read: %d of %d bytes", len(b), n)
		}
		return v.alloc.WrapHeap(b), nil
	}

	if _, ok := r.(interface{ SetReadDeadline(t time.Time) error }); ok {
		ref, err := v.alloc.AllocateDirect(n, buffer.OwnerStorage)
		if err != nil {
			return nil, err
		}
		if err := readFullBackoff(r, ref.Bytes()); err != nil {
			ref.Release()
			return nil, errors.Wrap(err, errors.ErrorTypeIO, "read value payload")
		}
		return ref, nil
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "read value payload")
	}
	return v.alloc.WrapHeap(b), nil
}

// readFullBackoff fills dst from r, parking briefly whenever a
// non-blocking read returns no bytes so a slow peer does not spin a
// core.
func readFullBackoff(r io.Reader, dst []byte) error {
	const maxBackoff = 5 * time.Millisecond
	backoff := 50 * time.Microsecond
	for read := 0; read < len(dst); {
		n, err := r.Read(dst[read:])
		read += n
		if read == len(dst) {
			return nil
		}
		if err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if n == 0 {
			time.Sleep(backoff)
			if backoff < maxBackoff {
				backoff *= 2
			}
		} else {
			backoff = 50 * time.Microsecond
		}
	}
	return nil
}

// ReadValue consumes a fully framed value, header included, and returns
// a fresh retained value of the framed kind.
func ReadValue(r io.Reader, order binary.ByteOrder, alloc *buffer.Allocator) (*ColumnValue, error) {
	var prefix [3]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "read value prefix")
	}
	if prefix[0] != wireFixedID || prefix[1] != wireStoreType {
		return nil, errors.Newf(errors.ErrorTypeData, "bad value prefix % x", prefix[:2])
	}
	kind, ok := kindFromWireID(prefix[2])
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "unknown value kind id %#x", prefix[2])
	}

	v := New(kind, alloc)
	if err := v.ReadFrom(r, order); err != nil {
		return nil, err
	}
	return v, nil
}
