package codec

import (
	"io"
	"math"
)

// vbCodec gap-codes doc ids and writes each gap as 7-bit groups, most
// significant first. The high bit marks the last group of a value.
type vbCodec struct{}

func (vbCodec) Kind() Kind { return KindVB }

func (vbCodec) Encode(dst []byte, p PostingList) ([]byte, error) {
	if err := validateSorted(p); err != nil {
		return dst, err
	}
	dst, start := appendGapHeader(dst, p)
	var prev int32
	for _, id := range p.DocIDs {
		dst = appendVByte(dst, uint32(id-prev))
		prev = id
	}
	finishGapHeader(dst, start)
	return dst, nil
}

func (vbCodec) Decode(buf []byte, pos int) (PostingList, int, error) {
	termID, df, payload, next, err := splitGapRecord(buf, pos)
	if err != nil {
		return PostingList{}, pos, err
	}
	ids := make([]int32, 0, min(df, len(payload)))
	var prev int64
	off := 0
	for i := 0; i < df; i++ {
		var v int64
		for {
			if off >= len(payload) {
				return PostingList{}, pos, truncated("term %d: unterminated variable-byte value %d of %d", termID, i+1, df)
			}
			b := payload[off]
			off++
			v = v<<7 | int64(b&0x7f)
			if v > math.MaxInt32 {
				return PostingList{}, pos, corrupt("term %d: variable-byte gap overflows int32", termID)
			}
			if b&0x80 != 0 {
				break
			}
		}
		prev += v
		if prev > math.MaxInt32 {
			return PostingList{}, pos, corrupt("term %d: doc id overflows int32", termID)
		}
		ids = append(ids, int32(prev))
	}
	if off != len(payload) {
		return PostingList{}, pos, corrupt("term %d: %d unread payload bytes", termID, len(payload)-off)
	}
	return PostingList{TermID: termID, DocIDs: ids}, next, nil
}

func (c vbCodec) ReadPosting(r io.Reader) (PostingList, int64, error) {
	rec, err := readRecord(r, gapFraming{})
	if err != nil {
		return PostingList{}, 0, err
	}
	p, _, err := c.Decode(rec, 0)
	return p, int64(len(rec)), err
}

// appendVByte writes v as the minimal number of 7-bit groups.
func appendVByte(dst []byte, v uint32) []byte {
	var groups [5]byte
	i := len(groups)
	for {
		i--
		groups[i] = byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			break
		}
	}
	groups[len(groups)-1] |= 0x80
	return append(dst, groups[i:]...)
}
