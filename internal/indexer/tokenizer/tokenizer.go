// Package tokenizer splits document and query text into terms. A term is any
// maximal run of non-whitespace characters; no case folding, stemming or
// stop-word removal is applied, so index and query terms match byte for byte.
package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxTokenSize bounds a single term when scanning a stream.
const DefaultMaxTokenSize = 1 << 20

// Tokenize returns the whitespace-delimited terms of text.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// Scan streams the terms of r to fn in order of appearance. Terms longer than
// maxTokenSize bytes are an error.
func Scan(r io.Reader, maxTokenSize int, fn func(term string)) (int, error) {
	if maxTokenSize <= 0 {
		maxTokenSize = DefaultMaxTokenSize
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(64*1024, maxTokenSize)), maxTokenSize)
	sc.Split(bufio.ScanWords)
	count := 0
	for sc.Scan() {
		fn(sc.Text())
		count++
	}
	if err := sc.Err(); err != nil {
		return count, fmt.Errorf("scanning terms: %w", err)
	}
	return count, nil
}
