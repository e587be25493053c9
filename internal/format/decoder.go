package format

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/meigma/pak/internal/paktype"
)

// decoder is a forward-only cursor over a byte slice. The first failure is
// sticky: later reads return zero values and Err reports the failure.
type decoder struct {
	buf []byte
	off int
	err error
}

func newDecoder(b []byte) *decoder {
	return &decoder{buf: b}
}

// Err returns the first decoding failure.
func (d *decoder) Err() error {
	return d.err
}

// Remaining returns the number of unread bytes.
func (d *decoder) Remaining() int {
	return len(d.buf) - d.off
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s at offset %d", paktype.ErrFormat, fmt.Sprintf(format, args...), d.off)
	}
}

func (d *decoder) take(n int, what string) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > d.Remaining() {
		d.fail("truncated %s", what)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) uint8(what string) uint8 {
	b := d.take(1, what)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) uint32(what string) uint32 {
	b := d.take(4, what)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) int32(what string) int32 {
	return int32(d.uint32(what)) //nolint:gosec // two's complement reinterpretation
}

func (d *decoder) int64(what string) int64 {
	b := d.take(8, what)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b)) //nolint:gosec // two's complement reinterpretation
}

// fstring reads a length-prefixed, NUL-terminated string. A negative
// length denotes UTF-16LE code units.
func (d *decoder) fstring(what string) string {
	n := d.int32(what + " length")
	switch {
	case d.err != nil:
		return ""
	case n == 0:
		return ""
	case n > 0:
		b := d.take(int(n), what)
		if b == nil {
			return ""
		}
		if b[len(b)-1] != 0 {
			d.fail("%s is not NUL terminated", what)
			return ""
		}
		return string(b[:len(b)-1])
	default:
		if n == -n {
			d.fail("invalid %s length", what)
			return ""
		}
		units := int(-n)
		if units > d.Remaining()/2 {
			d.fail("truncated %s", what)
			return ""
		}
		b := d.take(units*2, what)
		u := make([]uint16, units)
		for i := range u {
			u[i] = binary.LittleEndian.Uint16(b[i*2:])
		}
		if u[len(u)-1] != 0 {
			d.fail("%s is not NUL terminated", what)
			return ""
		}
		return string(utf16.Decode(u[:len(u)-1]))
	}
}
