// Package knowledge is an in-process document base: ingest text or PDF
// files, split them into overlapping chunks, and answer keyword queries by
// term-frequency scoring. It backs the search_knowledge_base tool.
package knowledge

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/parleyhq/parley/internal/util"
	"github.com/parleyhq/parley/logging"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200
)

// Document describes one ingested file.
type Document struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	SHA256   string    `json:"sha256"`
	Chunks   int       `json:"chunks"`
	Created  time.Time `json:"created_at"`
}

// Chunk is one indexed slice of a document.
type Chunk struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
}

// Result is a chunk with its query score.
type Result struct {
	Chunk
	Score int `json:"score"`
}

// Base is a thread-safe in-memory knowledge base.
type Base struct {
	mu     sync.RWMutex
	byHash map[string]*Document
	chunks []Chunk
	logger logging.Logger
}

// NewBase creates an empty knowledge base.
func NewBase(logger logging.Logger) *Base {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Base{byHash: make(map[string]*Document), logger: logger}
}

// IngestFile reads a file from disk and ingests it. Supported extensions are
// .pdf, .txt and .md.
func (b *Base) IngestFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: %w", err)
	}
	return b.Ingest(filepath.Base(path), data)
}

// Ingest indexes raw file content. Re-ingesting identical content returns
// the already-indexed document instead of duplicating chunks.
func (b *Base) Ingest(filename string, data []byte) (*Document, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.byHash[hash]; ok {
		clone := *existing
		return &clone, nil
	}

	text, err := extractText(filename, data)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("knowledge: %q contains no extractable text", filename)
	}

	doc := &Document{
		ID:       util.NewID(),
		Filename: filename,
		SHA256:   hash,
		Created:  time.Now().UTC(),
	}
	for i, piece := range chunkText(text) {
		b.chunks = append(b.chunks, Chunk{
			DocumentID: doc.ID,
			Filename:   filename,
			Index:      i,
			Text:       piece,
		})
		doc.Chunks++
	}
	b.byHash[hash] = doc

	b.logger.Info("document ingested", "filename", filename, "chunks", doc.Chunks)
	clone := *doc
	return &clone, nil
}

// Documents lists all ingested documents ordered by ingestion time.
func (b *Base) Documents() []*Document {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*Document, 0, len(b.byHash))
	for _, d := range b.byHash {
		clone := *d
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// Delete removes a document and its chunks.
func (b *Base) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var hash string
	for h, d := range b.byHash {
		if d.ID == id {
			hash = h
			break
		}
	}
	if hash == "" {
		return fmt.Errorf("knowledge: document %s not found", id)
	}
	delete(b.byHash, hash)

	kept := b.chunks[:0]
	for _, c := range b.chunks {
		if c.DocumentID != id {
			kept = append(kept, c)
		}
	}
	b.chunks = kept
	return nil
}

// Search scores every chunk by the number of query-term occurrences and
// returns the topN best matches. Chunks with no matching term are omitted.
func (b *Base) Search(query string, topN int) []Result {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}
	if topN <= 0 {
		topN = 3
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var results []Result
	for _, c := range b.chunks {
		lower := strings.ToLower(c.Text)
		score := 0
		for _, term := range terms {
			score += strings.Count(lower, term)
		}
		if score > 0 {
			results = append(results, Result{Chunk: c, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topN {
		results = results[:topN]
	}
	return results
}

func extractText(filename string, data []byte) (string, error) {
	if strings.ToLower(filepath.Ext(filename)) != ".pdf" {
		return string(data), nil
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("knowledge: read pdf %q: %w", filename, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("knowledge: extract pdf %q: %w", filename, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("knowledge: extract pdf %q: %w", filename, err)
	}
	return buf.String(), nil
}

// chunkText slices text into fixed-size rune windows with overlap so that a
// phrase straddling a boundary still matches in at least one chunk.
func chunkText(text string) []string {
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	step := chunkSize - chunkOverlap
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
