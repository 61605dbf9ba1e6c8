package codec

import (
	"encoding/binary"

	"github.com/meridiandb/meridian/pkg/errors"
)

func newNotCompressedErr(src []byte) error {
	leading := int32(0)
	if len(src) >= 4 {
		leading = int32(binary.LittleEndian.Uint32(src))
	}
	return errors.Newf(errors.ErrorTypeCorruptValue,
		"payload is not compressed (leading word %d)", leading)
}

func newUnknownCodecErr(id ID) error {
	return errors.Newf(errors.ErrorTypeCorruptValue, "unknown codec id %d", id)
}

func newShortPayloadErr(n int) error {
	return errors.Newf(errors.ErrorTypeCorruptValue, "compressed payload truncated at %d bytes", n)
}
