package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/tokenizer"
)

// blockStats describes one written block file.
type blockStats struct {
	path   string
	files  int
	tokens int64
	terms  int
}

// listBlocks returns the names of the block directories under root in
// sorted order.
func listBlocks(root string, logger *slog.Logger) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	blocks := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			logger.Warn("skipping non-directory entry in data root", "name", entry.Name())
			continue
		}
		if !validName(entry.Name()) {
			logger.Warn("skipping block with unsupported name", "name", entry.Name())
			continue
		}
		blocks = append(blocks, entry.Name())
	}
	return blocks, nil
}

// listDocuments returns the regular files of a block directory in sorted
// order.
func listDocuments(dir string, logger *slog.Logger) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading block directory: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			logger.Warn("skipping non-regular entry in block", "block", filepath.Base(dir), "name", entry.Name())
			continue
		}
		if !validName(entry.Name()) {
			logger.Warn("skipping document with unsupported name", "block", filepath.Base(dir), "name", entry.Name())
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

// validName rejects names that cannot be stored in a tab-separated
// dictionary line.
func validName(name string) bool {
	return !strings.ContainsAny(name, "\t\n\r")
}

// buildBlock scans every document of one block into the session
// dictionaries and writes the block's sorted postings to blockPath.
func (e *Engine) buildBlock(ctx context.Context, log *slog.Logger, s *index.Session, root, name, blockPath string) (*blockStats, error) {
	logger := log.With("block", name)
	files, err := listDocuments(filepath.Join(root, name), logger)
	if err != nil {
		return nil, err
	}

	bi := s.NewBlock()
	stats := &blockStats{path: blockPath}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docID, _ := s.Docs.Assign(name + "/" + file)
		n, err := scanDocument(filepath.Join(root, name, file), e.cfg.MaxTokenSize, func(term string) {
			termID, _ := s.Terms.Assign(term)
			bi.Add(termID, docID)
		})
		if err != nil {
			return nil, fmt.Errorf("indexing %s/%s: %w", name, file, err)
		}
		stats.files++
		stats.tokens += int64(n)
	}

	w, err := segment.Create(blockPath, e.codec)
	if err != nil {
		return nil, err
	}
	for _, p := range bi.Snapshot() {
		if _, err := w.Write(p); err != nil {
			w.Abort()
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	stats.terms = bi.Terms()

	e.metrics.BlocksIndexed.Inc()
	e.metrics.DocsIndexed.Add(float64(stats.files))
	logger.Info("block written",
		"file", filepath.Base(blockPath),
		"docs", stats.files,
		"tokens", stats.tokens,
		"terms", stats.terms,
		"bytes", w.Offset(),
	)
	return stats, nil
}

func scanDocument(path string, maxTokenSize int, fn func(term string)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return tokenizer.Scan(f, maxTokenSize, fn)
}
