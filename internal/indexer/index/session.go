// Package index holds the in-memory data model of a build run: the term and
// document dictionaries, the per-block posting accumulator and the posting
// directory, plus their tab-separated on-disk form.
package index

// Session owns the state of one build run. The block builder extends the
// dictionaries; the final merge fills the directory.
type Session struct {
	Terms     *Dictionary
	Docs      *Dictionary
	Directory PostingDirectory
	Dedup     bool
}

func NewSession(dedup bool) *Session {
	return &Session{
		Terms:     NewDictionary(),
		Docs:      NewDictionary(),
		Directory: make(PostingDirectory),
		Dedup:     dedup,
	}
}

// NewBlock returns an accumulator configured for this session.
func (s *Session) NewBlock() *BlockIndex {
	return NewBlockIndex(s.Dedup)
}
