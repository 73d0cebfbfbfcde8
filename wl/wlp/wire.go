package wlp

import (
	"bytes"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/pkg/errors"
)

var hostByteOrder binary.ByteOrder

func init() {
	var endianCheck uint32 = 0x1
	b := (*[4]byte)(unsafe.Pointer(&endianCheck))
	if b[0] == 1 {
		hostByteOrder = binary.LittleEndian
	} else {
		hostByteOrder = binary.BigEndian
	}
}

// Fixed is a signed 24.8 fixed point number.
type Fixed int32

func FixedFromFloat(f float64) Fixed {
	return Fixed(math.Round(f * 256))
}

func FixedFromInt(i int) Fixed {
	return Fixed(i * 256)
}

func (f Fixed) Float() float64 {
	return float64(f) / 256
}

func (f Fixed) Int() int {
	return int(f) / 256
}

// DecodeHeader splits the 8 byte message header.
func DecodeHeader(buf []byte) (id uint32, opcode uint16, size int) {
	id = hostByteOrder.Uint32(buf[:4])
	arg2 := hostByteOrder.Uint32(buf[4:8])
	opcode = uint16(arg2 & 0xFFFF)
	size = int(arg2 >> 16)
	return
}

// newID marks an argument that introduces a new object.
type newID uint32

func pad(n int) int {
	return (4 - n%4) % 4
}

func encodeArg(buf *bytes.Buffer, arg interface{}) error {
	switch v := arg.(type) {
	case nil:
		binary.Write(buf, hostByteOrder, uint32(0))
	case uint32:
		binary.Write(buf, hostByteOrder, v)
	case int32:
		binary.Write(buf, hostByteOrder, v)
	case Fixed:
		binary.Write(buf, hostByteOrder, int32(v))
	case newID:
		binary.Write(buf, hostByteOrder, uint32(v))
	case Object:
		binary.Write(buf, hostByteOrder, v.ID())
	case string:
		binary.Write(buf, hostByteOrder, uint32(len(v)+1))
		buf.WriteString(v)
		buf.Write(make([]byte, 1+pad(len(v)+1)))
	case []byte:
		binary.Write(buf, hostByteOrder, uint32(len(v)))
		buf.Write(v)
		buf.Write(make([]byte, pad(len(v))))
	default:
		return errors.Errorf("unsupported argument type %T", arg)
	}
	return nil
}

// decoder reads event arguments. The first short read sets err and every
// later read returns zero values.
type decoder struct {
	c   *Context
	buf []byte
	err error
}

func (d *decoder) next(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.buf) < n {
		d.err = errors.Errorf("short event payload, want %d bytes have %d", n, len(d.buf))
		return nil
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b
}

func (d *decoder) uint32() uint32 {
	b := d.next(4)
	if b == nil {
		return 0
	}
	return hostByteOrder.Uint32(b)
}

func (d *decoder) int32() int32 {
	return int32(d.uint32())
}

func (d *decoder) fixed() Fixed {
	return Fixed(d.uint32())
}

func (d *decoder) array() []byte {
	n := int(d.uint32())
	b := d.next(n + pad(n))
	if b == nil {
		return nil
	}
	return b[:n]
}

func (d *decoder) string() string {
	b := d.array()
	if len(b) == 0 {
		return ""
	}
	return string(bytes.TrimRight(b, "\x00"))
}

func (d *decoder) uint32s() []uint32 {
	b := d.array()
	out := make([]uint32, 0, len(b)/4)
	for len(b) >= 4 {
		out = append(out, hostByteOrder.Uint32(b))
		b = b[4:]
	}
	return out
}

// object resolves an object argument, nil when the id is null or unknown.
func (d *decoder) object() Object {
	id := d.uint32()
	if id == 0 || d.c == nil {
		return nil
	}
	o := d.c.lookup(id)
	if o == nil {
		return nil
	}
	return o
}
