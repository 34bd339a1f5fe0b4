package codec

import (
	"io"
	"math"
	"slices"
)

// gammaCodec gap-codes doc ids and writes each gap as an Elias-gamma code.
//
// Gamma cannot represent zero, and both the first doc id (0) and repeated ids
// (gap 0) produce zero gaps, so every gap is stored as gap+1.
type gammaCodec struct{}

func (gammaCodec) Kind() Kind { return KindGamma }

func (gammaCodec) Encode(dst []byte, p PostingList) ([]byte, error) {
	if err := validateSorted(p); err != nil {
		return dst, err
	}
	var w BitWriter
	var prev int32
	for _, id := range p.DocIDs {
		if err := w.AppendGamma(uint64(id-prev) + 1); err != nil {
			return dst, err
		}
		prev = id
	}
	dst = slices.Grow(dst, gapHeaderLen+(w.BitLen()+7)/8)
	dst, start := appendGapHeader(dst, p)
	dst = append(dst, w.Bytes()...)
	finishGapHeader(dst, start)
	return dst, nil
}

func (gammaCodec) Decode(buf []byte, pos int) (PostingList, int, error) {
	termID, df, payload, next, err := splitGapRecord(buf, pos)
	if err != nil {
		return PostingList{}, pos, err
	}
	// Each value needs at least one bit.
	if df > len(payload)*8 {
		return PostingList{}, pos, truncated("term %d: %d values cannot fit in %d payload bytes", termID, df, len(payload))
	}
	r := NewBitReader(payload, len(payload)*8)
	ids := make([]int32, 0, df)
	var prev int64
	for i := 0; i < df; i++ {
		g, err := r.ReadGamma()
		if err != nil {
			return PostingList{}, pos, err
		}
		prev += int64(g - 1)
		if prev > math.MaxInt32 {
			return PostingList{}, pos, corrupt("term %d: doc id overflows int32", termID)
		}
		ids = append(ids, int32(prev))
	}
	if r.Remaining() >= 8 {
		return PostingList{}, pos, corrupt("term %d: %d unread payload bits", termID, r.Remaining())
	}
	return PostingList{TermID: termID, DocIDs: ids}, next, nil
}

func (c gammaCodec) ReadPosting(r io.Reader) (PostingList, int64, error) {
	rec, err := readRecord(r, gapFraming{})
	if err != nil {
		return PostingList{}, 0, err
	}
	p, _, err := c.Decode(rec, 0)
	return p, int64(len(rec)), err
}
