package index

import (
	"slices"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
)

// BlockIndex accumulates one block's postings in memory until the block is
// sorted and flushed to a block file.
type BlockIndex struct {
	postings map[int32][]int32
	dedup    bool
}

// NewBlockIndex returns an empty accumulator. With dedup set a document is
// recorded at most once per term; otherwise every occurrence is kept.
func NewBlockIndex(dedup bool) *BlockIndex {
	return &BlockIndex{
		postings: make(map[int32][]int32),
		dedup:    dedup,
	}
}

// Add records one occurrence of termID in docID.
func (b *BlockIndex) Add(termID, docID int32) {
	list, exists := b.postings[termID]
	if !exists {
		list = make([]int32, 0, 4)
	}
	if b.dedup && len(list) > 0 && list[len(list)-1] == docID {
		return
	}
	b.postings[termID] = append(list, docID)
}

// Snapshot returns the block's posting lists ordered by term id, each list
// sorted ascending with duplicates kept.
func (b *BlockIndex) Snapshot() []codec.PostingList {
	termIDs := make([]int32, 0, len(b.postings))
	for termID := range b.postings {
		termIDs = append(termIDs, termID)
	}
	slices.Sort(termIDs)

	entries := make([]codec.PostingList, 0, len(termIDs))
	for _, termID := range termIDs {
		docIDs := slices.Clone(b.postings[termID])
		slices.Sort(docIDs)
		entries = append(entries, codec.PostingList{
			TermID: termID,
			DocIDs: docIDs,
		})
	}
	return entries
}

func (b *BlockIndex) Terms() int {
	return len(b.postings)
}
