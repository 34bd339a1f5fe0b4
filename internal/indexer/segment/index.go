package segment

import (
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// Index gives random access to the records of a final index file. It is
// safe for concurrent use.
type Index struct {
	file  *os.File
	codec codec.Codec
	path  string
	size  int64
}

func OpenIndex(path string, c codec.Codec) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat index file: %w", err)
	}
	return &Index{file: f, codec: c, path: path, size: info.Size()}, nil
}

// PostingAt decodes the record that starts at offset.
func (ix *Index) PostingAt(offset int64) (codec.PostingList, error) {
	if offset < 0 || offset >= ix.size {
		return codec.PostingList{}, fmt.Errorf("%w: offset %d outside %s (%d bytes)", apperrors.ErrCorruptIndex, offset, ix.path, ix.size)
	}
	p, _, err := ix.codec.ReadPosting(io.NewSectionReader(ix.file, offset, ix.size-offset))
	if err != nil {
		return codec.PostingList{}, fmt.Errorf("%s at offset %d: %w", ix.path, offset, err)
	}
	return p, nil
}

func (ix *Index) Size() int64 {
	return ix.size
}

func (ix *Index) Close() error {
	return ix.file.Close()
}
