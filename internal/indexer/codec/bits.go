package codec

import (
	"fmt"
	"math/bits"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// maxGammaPrefix bounds the unary length prefix: coded values never exceed
// 1<<31 (an int32 gap plus one).
const maxGammaPrefix = 31

// BitWriter appends bits to a byte buffer, most significant bit first within
// each byte. It keeps the exact number of bits written so trailing zero bits
// are never lost on serialization.
type BitWriter struct {
	buf  []byte
	nbit int
}

func (w *BitWriter) AppendBit(bit bool) {
	if w.nbit%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	if bit {
		w.buf[w.nbit/8] |= 0x80 >> (w.nbit % 8)
	}
	w.nbit++
}

// AppendUnary writes k one bits followed by a terminating zero bit.
func (w *BitWriter) AppendUnary(k int) {
	for i := 0; i < k; i++ {
		w.AppendBit(true)
	}
	w.AppendBit(false)
}

// AppendBits writes the low width bits of v, most significant first.
func (w *BitWriter) AppendBits(v uint64, width int) {
	for i := width - 1; i >= 0; i-- {
		w.AppendBit((v>>uint(i))&1 == 1)
	}
}

// AppendGamma writes the Elias-gamma code of g, which must be at least 1.
func (w *BitWriter) AppendGamma(g uint64) error {
	if g == 0 {
		return fmt.Errorf("%w: gamma code of zero", apperrors.ErrInvalidPosting)
	}
	k := bits.Len64(g) - 1
	w.AppendUnary(k)
	w.AppendBits(g, k)
	return nil
}

// BitLen reports the number of bits written so far.
func (w *BitWriter) BitLen() int {
	return w.nbit
}

// Bytes returns the packed bits padded with zero bits to a whole byte.
func (w *BitWriter) Bytes() []byte {
	need := (w.nbit + 7) / 8
	for len(w.buf) < need {
		w.buf = append(w.buf, 0)
	}
	return w.buf[:need]
}

// BitReader reads bits written by a BitWriter, never past its bit limit.
type BitReader struct {
	buf   []byte
	limit int
	pos   int
}

// NewBitReader reads at most nbits bits from buf.
func NewBitReader(buf []byte, nbits int) *BitReader {
	if nbits > len(buf)*8 {
		nbits = len(buf) * 8
	}
	return &BitReader{buf: buf, limit: nbits}
}

func (r *BitReader) ReadBit() (bool, error) {
	if r.pos >= r.limit {
		return false, truncated("bit stream exhausted after %d bits", r.limit)
	}
	bit := r.buf[r.pos/8]&(0x80>>(r.pos%8)) != 0
	r.pos++
	return bit, nil
}

// ReadUnary counts one bits up to and including the terminating zero bit.
func (r *BitReader) ReadUnary() (int, error) {
	k := 0
	for {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if !bit {
			return k, nil
		}
		k++
		if k > maxGammaPrefix {
			return 0, corrupt("unary prefix longer than %d bits", maxGammaPrefix)
		}
	}
}

func (r *BitReader) ReadBits(width int) (uint64, error) {
	var v uint64
	for i := 0; i < width; i++ {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		v <<= 1
		if bit {
			v |= 1
		}
	}
	return v, nil
}

func (r *BitReader) ReadGamma() (uint64, error) {
	k, err := r.ReadUnary()
	if err != nil {
		return 0, err
	}
	offset, err := r.ReadBits(k)
	if err != nil {
		return 0, err
	}
	return offset | 1<<uint(k), nil
}

// Remaining reports how many bits can still be read.
func (r *BitReader) Remaining() int {
	return r.limit - r.pos
}
