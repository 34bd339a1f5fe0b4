package merger

import (
	"fmt"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// cursor holds the current record of a sorted input.
type cursor struct {
	r     *segment.Reader
	cur   codec.PostingList
	valid bool
	last  int32
}

func newCursor(r *segment.Reader) *cursor {
	return &cursor{r: r, last: -1}
}

// advance loads the next record, or marks the cursor exhausted once the
// reader's position reaches the end of its file.
func (c *cursor) advance() error {
	if c.r.Done() {
		c.valid = false
		return nil
	}
	p, err := c.r.Next()
	if err != nil {
		return err
	}
	if p.TermID <= c.last {
		return fmt.Errorf("%w: %s: term %d follows term %d", apperrors.ErrCorruptIndex, c.r.Path(), p.TermID, c.last)
	}
	c.cur, c.valid, c.last = p, true, p.TermID
	return nil
}

// mergeStreams writes the union of a and b to emit in term id order. Lists of
// a term present on both sides are concatenated and re-sorted.
func mergeStreams(a, b *cursor, emit func(codec.PostingList) error) error {
	if err := a.advance(); err != nil {
		return err
	}
	if err := b.advance(); err != nil {
		return err
	}
	for a.valid && b.valid {
		switch {
		case a.cur.TermID == b.cur.TermID:
			docIDs := make([]int32, 0, len(a.cur.DocIDs)+len(b.cur.DocIDs))
			docIDs = append(docIDs, a.cur.DocIDs...)
			docIDs = append(docIDs, b.cur.DocIDs...)
			slices.Sort(docIDs)
			if err := emit(codec.PostingList{TermID: a.cur.TermID, DocIDs: docIDs}); err != nil {
				return err
			}
			if err := a.advance(); err != nil {
				return err
			}
			if err := b.advance(); err != nil {
				return err
			}
		case a.cur.TermID < b.cur.TermID:
			if err := emit(a.cur); err != nil {
				return err
			}
			if err := a.advance(); err != nil {
				return err
			}
		default:
			if err := emit(b.cur); err != nil {
				return err
			}
			if err := b.advance(); err != nil {
				return err
			}
		}
	}
	rest := a
	if !a.valid {
		rest = b
	}
	for rest.valid {
		if err := emit(rest.cur); err != nil {
			return err
		}
		if err := rest.advance(); err != nil {
			return err
		}
	}
	return nil
}
