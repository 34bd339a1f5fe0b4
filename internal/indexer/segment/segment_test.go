package segment

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

var records = []codec.PostingList{
	{TermID: 0, DocIDs: []int32{0, 1, 1, 5}},
	{TermID: 1, DocIDs: []int32{2}},
	{TermID: 4, DocIDs: []int32{0, 3, 300, 301}},
}

func writeRecords(t *testing.T, path string, c codec.Codec) []int64 {
	t.Helper()
	w, err := Create(path, c)
	require.NoError(t, err)
	offsets := make([]int64, 0, len(records))
	for _, p := range records {
		off, err := w.Write(p)
		require.NoError(t, err)
		offsets = append(offsets, off)
	}
	assert.Equal(t, len(records), w.Records())
	require.NoError(t, w.Close())
	assert.NoFileExists(t, path+".tmp")
	return offsets
}

func TestWriteThenRead(t *testing.T) {
	for _, kind := range []codec.Kind{codec.KindBasic, codec.KindVB, codec.KindGamma} {
		t.Run(kind.String(), func(t *testing.T) {
			c, err := codec.New(kind)
			require.NoError(t, err)
			path := filepath.Join(t.TempDir(), "block-000000.bsbi")
			offsets := writeRecords(t, path, c)
			assert.Equal(t, int64(0), offsets[0])

			r, err := Open(path, c)
			require.NoError(t, err)
			defer r.Close()
			var got []codec.PostingList
			for i := 0; !r.Done(); i++ {
				assert.Equal(t, offsets[i], r.Pos())
				p, err := r.Next()
				require.NoError(t, err)
				got = append(got, p)
			}
			assert.Equal(t, records, got)
			assert.Equal(t, r.Size(), r.Pos())

			_, err = r.Next()
			assert.ErrorIs(t, err, io.EOF)

			ix, err := OpenIndex(path, c)
			require.NoError(t, err)
			defer ix.Close()
			for i := len(records) - 1; i >= 0; i-- {
				p, err := ix.PostingAt(offsets[i])
				require.NoError(t, err)
				assert.Equal(t, records[i], p)
			}
			_, err = ix.PostingAt(ix.Size())
			assert.ErrorIs(t, err, apperrors.ErrCorruptIndex)
		})
	}
}

func TestEmptyFileIsDone(t *testing.T) {
	c, err := codec.New(codec.KindVB)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "empty.bsbi")
	w, err := Create(path, c)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := Open(path, c)
	require.NoError(t, err)
	defer r.Close()
	assert.True(t, r.Done())
}

func TestTruncatedFile(t *testing.T) {
	c, err := codec.New(codec.KindGamma)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "cut.bsbi")
	writeRecords(t, path, c)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-1))

	r, err := Open(path, c)
	require.NoError(t, err)
	defer r.Close()
	for {
		_, err = r.Next()
		if err != nil {
			break
		}
		require.False(t, r.Done(), "reader finished without noticing the cut")
	}
	assert.ErrorIs(t, err, apperrors.ErrTruncatedRecord)
}

// oversizedHeader is a record header whose docFrequency, and for the gap
// codecs payloadByteLength, claim far more bytes than the file holds.
func oversizedHeader(kind codec.Kind) []byte {
	buf := binary.BigEndian.AppendUint32(nil, 0)
	buf = binary.BigEndian.AppendUint32(buf, 0x7fffffff)
	if kind != codec.KindBasic {
		buf = binary.BigEndian.AppendUint32(buf, 0x7fffffff)
	}
	return append(buf, 0x81, 0x82)
}

func TestOversizedHeaderIsTruncation(t *testing.T) {
	for _, kind := range []codec.Kind{codec.KindBasic, codec.KindVB, codec.KindGamma} {
		t.Run(kind.String(), func(t *testing.T) {
			c, err := codec.New(kind)
			require.NoError(t, err)
			path := filepath.Join(t.TempDir(), "huge.bsbi")
			require.NoError(t, os.WriteFile(path, oversizedHeader(kind), 0o644))

			r, err := Open(path, c)
			require.NoError(t, err)
			defer r.Close()
			_, err = r.Next()
			assert.ErrorIs(t, err, apperrors.ErrTruncatedRecord)

			ix, err := OpenIndex(path, c)
			require.NoError(t, err)
			defer ix.Close()
			_, err = ix.PostingAt(0)
			assert.ErrorIs(t, err, apperrors.ErrTruncatedRecord)
		})
	}
}

func TestAbortRemovesFile(t *testing.T) {
	c, err := codec.New(codec.KindBasic)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "aborted.bsbi")
	w, err := Create(path, c)
	require.NoError(t, err)
	_, err = w.Write(records[0])
	require.NoError(t, err)
	w.Abort()
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+".tmp")
}
