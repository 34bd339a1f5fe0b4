package codec

import (
	"encoding/binary"
	"io"
)

const basicHeaderLen = 8

// basicCodec stores doc ids as raw 4-byte big-endian integers.
type basicCodec struct{}

func (basicCodec) Kind() Kind { return KindBasic }

func (basicCodec) Encode(dst []byte, p PostingList) ([]byte, error) {
	dst = binary.BigEndian.AppendUint32(dst, uint32(p.TermID))
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(p.DocIDs)))
	for _, id := range p.DocIDs {
		dst = binary.BigEndian.AppendUint32(dst, uint32(id))
	}
	return dst, nil
}

func (basicCodec) Decode(buf []byte, pos int) (PostingList, int, error) {
	if pos < 0 || len(buf)-pos < basicHeaderLen {
		return PostingList{}, pos, truncated("need %d header bytes at offset %d", basicHeaderLen, pos)
	}
	n, err := basicCodec{}.payloadLen(buf[pos : pos+basicHeaderLen])
	if err != nil {
		return PostingList{}, pos, err
	}
	start := pos + basicHeaderLen
	if len(buf)-start < n {
		return PostingList{}, pos, truncated("payload needs %d bytes, %d remain", n, len(buf)-start)
	}
	ids := make([]int32, n/4)
	for i := range ids {
		ids[i] = int32(binary.BigEndian.Uint32(buf[start+4*i:]))
	}
	return PostingList{
		TermID: int32(binary.BigEndian.Uint32(buf[pos:])),
		DocIDs: ids,
	}, start + n, nil
}

func (c basicCodec) ReadPosting(r io.Reader) (PostingList, int64, error) {
	rec, err := readRecord(r, c)
	if err != nil {
		return PostingList{}, 0, err
	}
	p, _, err := c.Decode(rec, 0)
	return p, int64(len(rec)), err
}

func (basicCodec) headerLen() int { return basicHeaderLen }

func (basicCodec) payloadLen(header []byte) (int, error) {
	df := int32(binary.BigEndian.Uint32(header[4:8]))
	if df < 0 {
		return 0, corrupt("negative docFrequency %d", df)
	}
	return 4 * int(df), nil
}
