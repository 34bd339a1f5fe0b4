// Package executor answers conjunctive queries against a built index. The
// dictionaries are loaded once and are read-only afterwards; posting lists
// are read from the index file on demand.
package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

type SearchResult struct {
	Query       string   `json:"query"`
	DocIDs      []int32  `json:"doc_ids"`
	Paths       []string `json:"paths"`
	MissingTerm string   `json:"missing_term,omitempty"`
}

// Empty reports whether the query matched no documents.
func (r *SearchResult) Empty() bool {
	return len(r.DocIDs) == 0
}

// Executor is safe for concurrent use once opened.
type Executor struct {
	codec       codec.Codec
	terms       *index.Dictionary
	docs        map[int32]string
	directory   index.PostingDirectory
	ix          *segment.Index
	fingerprint string
	logger      *slog.Logger
}

// Open loads the index stored in dir, which must have been built with the
// same codec.
func Open(dir string, c codec.Codec) (*Executor, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, apperrors.Newf(apperrors.ErrInvalidDirectory, apperrors.ExitBadDir, "invalid index directory: %s", dir)
	}
	for _, name := range []string{index.TermDictFile, index.DocDictFile, index.PostingDictFile, index.IndexFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidDirectory, apperrors.ExitBadDir, "index directory %s has no %s", dir, name)
		}
	}

	terms, err := index.ReadDictionary(filepath.Join(dir, index.TermDictFile))
	if err != nil {
		return nil, err
	}
	docs, err := index.ReadDictionary(filepath.Join(dir, index.DocDictFile))
	if err != nil {
		return nil, err
	}
	directory, err := index.ReadPostingDirectory(filepath.Join(dir, index.PostingDictFile))
	if err != nil {
		return nil, err
	}
	fingerprint, err := fingerprintOf(c, filepath.Join(dir, index.PostingDictFile))
	if err != nil {
		return nil, err
	}
	ix, err := segment.OpenIndex(filepath.Join(dir, index.IndexFile), c)
	if err != nil {
		return nil, err
	}

	e := &Executor{
		codec:       c,
		terms:       terms,
		docs:        docs.Invert(),
		directory:   directory,
		ix:          ix,
		fingerprint: fingerprint,
		logger:      slog.Default().With("component", "query-executor"),
	}
	e.logger.Info("index loaded",
		"dir", dir,
		"codec", c.Kind().String(),
		"terms", terms.Len(),
		"docs", docs.Len(),
		"index_bytes", ix.Size(),
	)
	return e, nil
}

// Execute intersects the posting lists of the plan's terms left to right.
// A term missing from the dictionary empties the result without an error.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan) (*SearchResult, error) {
	res := &SearchResult{Query: plan.RawQuery, DocIDs: []int32{}, Paths: []string{}}
	if plan.Empty() {
		return res, nil
	}

	var acc []int32
	for i, term := range plan.Terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docIDs, err := e.postings(term)
		if errors.Is(err, apperrors.ErrUnknownQueryTerm) {
			res.MissingTerm = term
			e.logger.Debug("query term not in dictionary", "term", term)
			return res, nil
		}
		if err != nil {
			return nil, err
		}
		if i == 0 {
			acc = unique(docIDs)
		} else {
			acc = intersect(acc, docIDs)
		}
		if len(acc) == 0 {
			break
		}
	}

	for _, docID := range acc {
		path, ok := e.docs[docID]
		if !ok {
			return nil, fmt.Errorf("%w: doc id %d has no entry in %s", apperrors.ErrCorruptIndex, docID, index.DocDictFile)
		}
		res.DocIDs = append(res.DocIDs, docID)
		res.Paths = append(res.Paths, path)
	}
	return res, nil
}

// postings reads and checks the posting list of term.
func (e *Executor) postings(term string) ([]int32, error) {
	termID, ok := e.terms.Lookup(term)
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownQueryTerm, term)
	}
	entry, ok := e.directory[termID]
	if !ok {
		return nil, fmt.Errorf("%w: term %q (id %d) has no entry in %s", apperrors.ErrCorruptIndex, term, termID, index.PostingDictFile)
	}
	p, err := e.ix.PostingAt(entry.Offset)
	if err != nil {
		return nil, err
	}
	if p.TermID != termID || int32(p.DocFreq()) != entry.DocFreq {
		return nil, fmt.Errorf("%w: record at offset %d is term %d with %d postings, want term %d with %d",
			apperrors.ErrCorruptIndex, entry.Offset, p.TermID, p.DocFreq(), termID, entry.DocFreq)
	}
	if len(p.DocIDs) > 0 && (p.DocIDs[0] < 0 || !slices.IsSorted(p.DocIDs)) {
		return nil, fmt.Errorf("%w: postings of term %q are not ascending doc ids", apperrors.ErrCorruptIndex, term)
	}
	return p.DocIDs, nil
}

// Fingerprint identifies the loaded index; it changes whenever the index is
// rebuilt with different content or codec.
func (e *Executor) Fingerprint() string {
	return e.fingerprint
}

func (e *Executor) Close() error {
	return e.ix.Close()
}

func fingerprintOf(c codec.Codec, postingDict string) (string, error) {
	f, err := os.Open(postingDict)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", postingDict, err)
	}
	defer f.Close()
	h := sha256.New()
	h.Write([]byte(c.Kind().String()))
	h.Write([]byte{0})
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", postingDict, err)
	}
	return hex.EncodeToString(h.Sum(nil)[:16]), nil
}
