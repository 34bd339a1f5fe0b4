package segment

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
)

// Reader decodes the records of a file in order. The end of the file is
// reached when the read position equals the file size; a record cut short
// before that is reported as ErrTruncatedRecord.
type Reader struct {
	file  *os.File
	br    *bufio.Reader
	codec codec.Codec
	path  string
	pos   int64
	size  int64
}

func Open(path string, c codec.Codec) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	return &Reader{
		file:  f,
		br:    bufio.NewReaderSize(f, bufferSize),
		codec: c,
		path:  path,
		size:  info.Size(),
	}, nil
}

// Done reports whether every record has been read.
func (r *Reader) Done() bool {
	return r.pos >= r.size
}

// Next decodes the record at the current position.
func (r *Reader) Next() (codec.PostingList, error) {
	if r.Done() {
		return codec.PostingList{}, io.EOF
	}
	// The record may not extend past the size seen at Open.
	p, n, err := r.codec.ReadPosting(io.LimitReader(r.br, r.size-r.pos))
	if err != nil {
		return codec.PostingList{}, fmt.Errorf("%s at offset %d: %w", r.path, r.pos, err)
	}
	r.pos += n
	return p, nil
}

// Pos is the offset of the next record.
func (r *Reader) Pos() int64 {
	return r.pos
}

func (r *Reader) Size() int64 {
	return r.size
}

func (r *Reader) Path() string {
	return r.path
}

func (r *Reader) Close() error {
	return r.file.Close()
}
