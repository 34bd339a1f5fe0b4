package index

// PostingEntry locates one term's record in the final index file.
type PostingEntry struct {
	Offset  int64
	DocFreq int32
}

// PostingDirectory maps a term id to its record in the final index file.
type PostingDirectory map[int32]PostingEntry

// Put records the entry for termID, replacing any earlier one.
func (d PostingDirectory) Put(termID int32, offset int64, docFreq int) {
	d[termID] = PostingEntry{Offset: offset, DocFreq: int32(docFreq)}
}
