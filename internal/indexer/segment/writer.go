// Package segment reads and writes files made of consecutive posting records:
// the per-block index files produced by the block builder and merger, and the
// final corpus index that the query engine reads by offset.
package segment

import (
	"bufio"
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
)

const bufferSize = 64 * 1024

// Writer streams encoded posting records into a new file. The file is built
// at a .tmp path and renamed into place by Close.
type Writer struct {
	file    *os.File
	bw      *bufio.Writer
	codec   codec.Codec
	path    string
	tmpPath string
	offset  int64
	records int
	scratch []byte
}

// Create starts a new record file at path.
func Create(path string, c codec.Codec) (*Writer, error) {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("creating segment file: %w", err)
	}
	return &Writer{
		file:    f,
		bw:      bufio.NewWriterSize(f, bufferSize),
		codec:   c,
		path:    path,
		tmpPath: tmpPath,
	}, nil
}

// Write appends one record and returns the byte offset it starts at.
func (w *Writer) Write(p codec.PostingList) (int64, error) {
	rec, err := w.codec.Encode(w.scratch[:0], p)
	if err != nil {
		return 0, fmt.Errorf("encoding postings for term %d: %w", p.TermID, err)
	}
	w.scratch = rec
	offset := w.offset
	if _, err := w.bw.Write(rec); err != nil {
		return 0, fmt.Errorf("writing postings for term %d: %w", p.TermID, err)
	}
	w.offset += int64(len(rec))
	w.records++
	return offset, nil
}

// Offset is the number of bytes written so far.
func (w *Writer) Offset() int64 {
	return w.offset
}

func (w *Writer) Records() int {
	return w.records
}

func (w *Writer) Path() string {
	return w.path
}

// Close flushes and syncs the file and renames it to its final path.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.Abort()
		return fmt.Errorf("flushing segment file: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		w.Abort()
		return fmt.Errorf("syncing segment file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("renaming segment file: %w", err)
	}
	return nil
}

// Abort discards the partially written file.
func (w *Writer) Abort() {
	w.file.Close()
	os.Remove(w.tmpPath)
}
