package index

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// Artifact names inside an index directory.
const (
	TermDictFile    = "term.dict"
	DocDictFile     = "doc.dict"
	PostingDictFile = "posting.dict"
	IndexFile       = "corpus.index"
)

const maxDictLine = 16 << 20

// WriteDictionary writes "<key>\t<id>" lines sorted by key.
func WriteDictionary(path string, d *Dictionary) error {
	return WriteAtomic(path, func(w *bufio.Writer) error {
		for _, e := range d.Entries() {
			if strings.ContainsAny(e.Key, "\t\n\r") {
				return fmt.Errorf("%w: key %q contains a tab or newline", apperrors.ErrMalformedDictionary, e.Key)
			}
			if _, err := fmt.Fprintf(w, "%s\t%d\n", e.Key, e.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadDictionary loads a file written by WriteDictionary.
func ReadDictionary(path string) (*Dictionary, error) {
	d := NewDictionary()
	err := scanTSV(path, 2, func(lineNo int, fields []string) error {
		id, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil || id < 0 {
			return fmt.Errorf("bad id %q", fields[1])
		}
		if _, dup := d.Lookup(fields[0]); dup {
			return fmt.Errorf("duplicate key %q", fields[0])
		}
		d.Put(fields[0], int32(id))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// WritePostingDirectory writes "<termId>\t<offset>\t<docFreq>" lines sorted
// by term id.
func WritePostingDirectory(path string, dir PostingDirectory) error {
	termIDs := make([]int32, 0, len(dir))
	for termID := range dir {
		termIDs = append(termIDs, termID)
	}
	sort.Slice(termIDs, func(i, j int) bool { return termIDs[i] < termIDs[j] })
	return WriteAtomic(path, func(w *bufio.Writer) error {
		for _, termID := range termIDs {
			e := dir[termID]
			if _, err := fmt.Fprintf(w, "%d\t%d\t%d\n", termID, e.Offset, e.DocFreq); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadPostingDirectory loads a file written by WritePostingDirectory.
func ReadPostingDirectory(path string) (PostingDirectory, error) {
	dir := make(PostingDirectory)
	err := scanTSV(path, 3, func(lineNo int, fields []string) error {
		termID, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil || termID < 0 {
			return fmt.Errorf("bad term id %q", fields[0])
		}
		offset, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || offset < 0 {
			return fmt.Errorf("bad offset %q", fields[1])
		}
		docFreq, err := strconv.ParseInt(fields[2], 10, 32)
		if err != nil || docFreq < 0 {
			return fmt.Errorf("bad document frequency %q", fields[2])
		}
		if _, dup := dir[int32(termID)]; dup {
			return fmt.Errorf("duplicate term id %d", termID)
		}
		dir.Put(int32(termID), offset, int(docFreq))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dir, nil
}

func scanTSV(path string, nfields int, fn func(lineNo int, fields []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxDictLine)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) != nfields {
			return fmt.Errorf("%w: %s:%d: want %d fields, got %d", apperrors.ErrMalformedDictionary, path, lineNo, nfields, len(fields))
		}
		if err := fn(lineNo, fields); err != nil {
			return fmt.Errorf("%w: %s:%d: %v", apperrors.ErrMalformedDictionary, path, lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// WriteAtomic writes path through a .tmp sibling that is synced and renamed
// into place only after fn succeeds.
func WriteAtomic(path string, fn func(w *bufio.Writer) error) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmpPath, err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s: %w", tmpPath, err)
	}
	return nil
}
