// Package codec implements the on-disk posting-list record formats shared by
// block index files and the final corpus index. Every record starts with a
// big-endian termId/docFrequency header; the gap-coded variants (VB, Gamma)
// add the byte length of their packed payload.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// PostingList is one term's document ids, sorted ascending. Repeated ids are
// allowed and survive every codec unchanged.
type PostingList struct {
	TermID int32
	DocIDs []int32
}

// DocFreq returns the number of entries in the list.
func (p PostingList) DocFreq() int {
	return len(p.DocIDs)
}

// Kind enumerates the closed set of record formats.
type Kind int

const (
	KindBasic Kind = iota
	KindVB
	KindGamma
)

var kindNames = [...]string{
	KindBasic: "Basic",
	KindVB:    "VB",
	KindGamma: "Gamma",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind resolves a codec name case-insensitively.
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q (index method must be Basic, VB or Gamma)", apperrors.ErrUnrecognizedCodec, name)
}

// Codec converts posting lists to and from their binary record form.
//
// Decode and ReadPosting return an error wrapping ErrTruncatedRecord when
// fewer bytes remain than the record needs. That is always corruption:
// callers detect end of file by comparing their position to the file
// length and never call Decode once they have reached it.
type Codec interface {
	Kind() Kind
	// Encode appends the record for p to dst.
	Encode(dst []byte, p PostingList) ([]byte, error)
	// Decode parses the record starting at buf[pos] and returns the
	// position just past it.
	Decode(buf []byte, pos int) (PostingList, int, error)
	// ReadPosting consumes exactly one record from r and reports its size.
	ReadPosting(r io.Reader) (PostingList, int64, error)
}

// New returns the codec for kind.
func New(kind Kind) (Codec, error) {
	switch kind {
	case KindBasic:
		return basicCodec{}, nil
	case KindVB:
		return vbCodec{}, nil
	case KindGamma:
		return gammaCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnrecognizedCodec, kind)
	}
}

// ForName resolves name and returns its codec.
func ForName(name string) (Codec, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	return New(kind)
}

// framing describes how many bytes a record occupies, given its header.
type framing interface {
	headerLen() int
	payloadLen(header []byte) (int, error)
}

// readChunk bounds how far the record buffer grows ahead of the bytes
// actually read, so a corrupt length in a header cannot force a huge
// allocation before the short read is noticed.
const readChunk = 64 << 10

func readRecord(r io.Reader, f framing) ([]byte, error) {
	hl := f.headerLen()
	header := make([]byte, hl)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, shortRead(err, "header")
	}
	n, err := f.payloadLen(header)
	if err != nil {
		return nil, err
	}
	rec := make([]byte, hl, hl+min(n, readChunk))
	copy(rec, header)
	for remaining := n; remaining > 0; {
		step := min(remaining, readChunk)
		start := len(rec)
		rec = slices.Grow(rec, step)[:start+step]
		if _, err := io.ReadFull(r, rec[start:]); err != nil {
			return nil, shortRead(err, "payload")
		}
		remaining -= step
	}
	return rec, nil
}

func shortRead(err error, part string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: short %s", apperrors.ErrTruncatedRecord, part)
	}
	return fmt.Errorf("reading record %s: %w", part, err)
}

func truncated(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrTruncatedRecord, fmt.Sprintf(format, args...))
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrCorruptIndex, fmt.Sprintf(format, args...))
}

// validateSorted rejects lists that cannot be gap coded.
func validateSorted(p PostingList) error {
	for i, id := range p.DocIDs {
		if id < 0 {
			return fmt.Errorf("%w: term %d has negative doc id %d", apperrors.ErrInvalidPosting, p.TermID, id)
		}
		if i > 0 && id < p.DocIDs[i-1] {
			return fmt.Errorf("%w: term %d doc ids not ascending at index %d", apperrors.ErrInvalidPosting, p.TermID, i)
		}
	}
	return nil
}

// appendGapHeader reserves the 12-byte termId/docFrequency/payloadLength
// header and returns the offset at which it starts.
func appendGapHeader(dst []byte, p PostingList) ([]byte, int) {
	start := len(dst)
	dst = binary.BigEndian.AppendUint32(dst, uint32(p.TermID))
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(p.DocIDs)))
	dst = binary.BigEndian.AppendUint32(dst, 0)
	return dst, start
}

func finishGapHeader(dst []byte, start int) {
	payload := len(dst) - start - gapHeaderLen
	binary.BigEndian.PutUint32(dst[start+8:], uint32(payload))
}

const gapHeaderLen = 12

// gapFraming is shared by the VB and Gamma record layouts.
type gapFraming struct{}

func (gapFraming) headerLen() int { return gapHeaderLen }

func (gapFraming) payloadLen(header []byte) (int, error) {
	df := int32(binary.BigEndian.Uint32(header[4:8]))
	n := int32(binary.BigEndian.Uint32(header[8:12]))
	if df < 0 || n < 0 {
		return 0, corrupt("negative header field (docFrequency=%d, payloadByteLength=%d)", df, n)
	}
	return int(n), nil
}

// splitGapRecord parses a VB/Gamma header at buf[pos] and returns the
// payload slice and the position just past the record.
func splitGapRecord(buf []byte, pos int) (termID int32, df int, payload []byte, next int, err error) {
	if pos < 0 || len(buf)-pos < gapHeaderLen {
		return 0, 0, nil, pos, truncated("need %d header bytes at offset %d", gapHeaderLen, pos)
	}
	n, err := gapFraming{}.payloadLen(buf[pos : pos+gapHeaderLen])
	if err != nil {
		return 0, 0, nil, pos, err
	}
	termID = int32(binary.BigEndian.Uint32(buf[pos:]))
	df = int(int32(binary.BigEndian.Uint32(buf[pos+4:])))
	start := pos + gapHeaderLen
	if len(buf)-start < n {
		return 0, 0, nil, pos, truncated("payload needs %d bytes, %d remain", n, len(buf)-start)
	}
	return termID, df, buf[start : start+n], start + n, nil
}
