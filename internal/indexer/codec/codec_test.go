package codec

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

func allCodecs(t *testing.T) []Codec {
	t.Helper()
	codecs := make([]Codec, 0, len(kindNames))
	for i := range kindNames {
		c, err := New(Kind(i))
		require.NoError(t, err)
		codecs = append(codecs, c)
	}
	return codecs
}

func randomAscending(r *rand.Rand, n int, maxGap int32) []int32 {
	ids := make([]int32, n)
	var cur int32
	for i := range ids {
		cur += r.Int31n(maxGap + 1)
		ids[i] = cur
	}
	return ids
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	consecutive := make([]int32, 500)
	for i := range consecutive {
		consecutive[i] = int32(i)
	}
	repeats := []int32{0, 0, 0, 3, 3, 9, 9, 9, 9}
	lists := map[string][]int32{
		"empty":       {},
		"single one":  {1},
		"single zero": {0},
		"scenario a":  {0, 1},
		"gaps of one": consecutive,
		"repeats":     repeats,
		"large ids":   {0, 1 << 20, 1<<30 + 7, math.MaxInt32},
		"random":      randomAscending(r, 2000, 1000),
		"sparse":      randomAscending(r, 64, 1<<24),
	}
	for _, c := range allCodecs(t) {
		for name, ids := range lists {
			t.Run(c.Kind().String()+"/"+name, func(t *testing.T) {
				in := PostingList{TermID: 17, DocIDs: ids}
				buf, err := c.Encode(nil, in)
				require.NoError(t, err)

				out, next, err := c.Decode(buf, 0)
				require.NoError(t, err)
				assert.Equal(t, len(buf), next)
				assert.Equal(t, int32(17), out.TermID)
				assert.Equal(t, ids, out.DocIDs)

				streamed, n, err := c.ReadPosting(bytes.NewReader(buf))
				require.NoError(t, err)
				assert.Equal(t, int64(len(buf)), n)
				assert.Equal(t, out, streamed)
			})
		}
	}
}

func TestDecodeConsecutiveRecords(t *testing.T) {
	lists := []PostingList{
		{TermID: 0, DocIDs: []int32{0, 4, 4, 12}},
		{TermID: 3, DocIDs: []int32{7}},
		{TermID: 9, DocIDs: []int32{1, 2, 3, 300, 70000}},
	}
	for _, c := range allCodecs(t) {
		t.Run(c.Kind().String(), func(t *testing.T) {
			var buf []byte
			var err error
			for _, p := range lists {
				buf, err = c.Encode(buf, p)
				require.NoError(t, err)
			}
			var got []PostingList
			for pos := 0; pos != len(buf); {
				var p PostingList
				p, pos, err = c.Decode(buf, pos)
				require.NoError(t, err)
				got = append(got, p)
			}
			assert.Equal(t, lists, got)
		})
	}
}

func TestBasicLayout(t *testing.T) {
	c, err := New(KindBasic)
	require.NoError(t, err)
	buf, err := c.Encode(nil, PostingList{TermID: 2, DocIDs: []int32{0, 1}})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0, 0, 0, 2,
		0, 0, 0, 2,
		0, 0, 0, 0,
		0, 0, 0, 1,
	}, buf)
}

func TestVBGapOf300UsesTwoBytes(t *testing.T) {
	c, err := New(KindVB)
	require.NoError(t, err)
	buf, err := c.Encode(nil, PostingList{TermID: 1, DocIDs: []int32{300}})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0, 0, 0, 1,
		0, 0, 0, 1,
		0, 0, 0, 2,
		0x02, 0xac,
	}, buf)

	p, _, err := c.Decode(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{300}, p.DocIDs)
}

func TestVBGapEncoding(t *testing.T) {
	assert.Equal(t, []byte{0x80}, appendVByte(nil, 0))
	assert.Equal(t, []byte{0xff}, appendVByte(nil, 127))
	assert.Equal(t, []byte{0x01, 0x80}, appendVByte(nil, 128))
	assert.Equal(t, []byte{0x0f, 0x7f, 0x7f, 0x7f, 0xff}, appendVByte(nil, math.MaxUint32))
}

func TestVBMissingTerminator(t *testing.T) {
	c, err := New(KindVB)
	require.NoError(t, err)
	rec := []byte{
		0, 0, 0, 1,
		0, 0, 0, 1,
		0, 0, 0, 2,
		0x01, 0x02,
	}
	_, _, err = c.Decode(rec, 0)
	assert.ErrorIs(t, err, apperrors.ErrTruncatedRecord)
}

func TestGammaLayout(t *testing.T) {
	c, err := New(KindGamma)
	require.NoError(t, err)
	// Coded values 1 ("0") and 2 ("100") pack into 0100 0000.
	buf, err := c.Encode(nil, PostingList{TermID: 5, DocIDs: []int32{0, 1}})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0, 0, 0, 5,
		0, 0, 0, 2,
		0, 0, 0, 1,
		0x40,
	}, buf)
}

func TestGammaPaddingSurvivesReopen(t *testing.T) {
	c, err := New(KindGamma)
	require.NoError(t, err)
	lists := []PostingList{
		{TermID: 0, DocIDs: []int32{0, 1}},
		// Ten trailing zero gaps: the last payload bytes are all zero.
		{TermID: 1, DocIDs: []int32{5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5}},
		{TermID: 2, DocIDs: []int32{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{TermID: 3, DocIDs: []int32{3, 9, 27}},
	}

	path := filepath.Join(t.TempDir(), "gamma.bsbi")
	f, err := os.Create(path)
	require.NoError(t, err)
	for _, p := range lists {
		rec, err := c.Encode(nil, p)
		require.NoError(t, err)
		_, err = f.Write(rec)
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	f, err = os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	var pos int64
	var got []PostingList
	for pos != info.Size() {
		p, n, err := c.ReadPosting(f)
		require.NoError(t, err)
		pos += n
		got = append(got, p)
	}
	assert.Equal(t, lists, got)
}

func TestTruncatedRecords(t *testing.T) {
	p := PostingList{TermID: 4, DocIDs: []int32{2, 8, 8, 1000}}
	for _, c := range allCodecs(t) {
		t.Run(c.Kind().String(), func(t *testing.T) {
			buf, err := c.Encode(nil, p)
			require.NoError(t, err)

			_, _, err = c.Decode(buf[:len(buf)-1], 0)
			assert.ErrorIs(t, err, apperrors.ErrTruncatedRecord)

			_, _, err = c.Decode(buf[:5], 0)
			assert.ErrorIs(t, err, apperrors.ErrTruncatedRecord)

			_, _, err = c.ReadPosting(bytes.NewReader(buf[:len(buf)-1]))
			assert.ErrorIs(t, err, apperrors.ErrTruncatedRecord)

			_, _, err = c.ReadPosting(bytes.NewReader(nil))
			assert.ErrorIs(t, err, apperrors.ErrTruncatedRecord)
		})
	}
}

func TestGapCodecsRejectUnsorted(t *testing.T) {
	for _, kind := range []Kind{KindVB, KindGamma} {
		c, err := New(kind)
		require.NoError(t, err)
		_, err = c.Encode(nil, PostingList{TermID: 1, DocIDs: []int32{4, 2}})
		assert.ErrorIs(t, err, apperrors.ErrInvalidPosting, kind.String())
		_, err = c.Encode(nil, PostingList{TermID: 1, DocIDs: []int32{-1}})
		assert.ErrorIs(t, err, apperrors.ErrInvalidPosting, kind.String())
	}
}

func TestParseKind(t *testing.T) {
	for name, want := range map[string]Kind{"Basic": KindBasic, "vb": KindVB, "GAMMA": KindGamma} {
		got, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("Delta")
	assert.ErrorIs(t, err, apperrors.ErrUnrecognizedCodec)
	_, err = ForName("")
	assert.ErrorIs(t, err, apperrors.ErrUnrecognizedCodec)
	_, err = New(Kind(9))
	assert.ErrorIs(t, err, apperrors.ErrUnrecognizedCodec)
}

func TestReadPostingOversizedLengthIsTruncated(t *testing.T) {
	for _, kind := range []Kind{KindBasic, KindVB, KindGamma} {
		t.Run(kind.String(), func(t *testing.T) {
			c, err := New(kind)
			require.NoError(t, err)
			rec := binary.BigEndian.AppendUint32(nil, 3)
			rec = binary.BigEndian.AppendUint32(rec, 0x7fffffff)
			if kind != KindBasic {
				rec = binary.BigEndian.AppendUint32(rec, 0x7ffffff0)
			}
			rec = append(rec, make([]byte, 3*readChunk)...)

			_, _, err = c.ReadPosting(bytes.NewReader(rec))
			assert.ErrorIs(t, err, apperrors.ErrTruncatedRecord)
		})
	}
}
