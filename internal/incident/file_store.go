package incident

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/sentinel-governance/sentinel/internal/model"
)

// FileStore is the file-backed (mock mode) Incident Store: it loads
// data/incidents.json at startup and hot-reloads via fsnotify, matching
// FileStore's pattern in internal/topology.
type FileStore struct {
	path    string
	current atomic.Pointer[[]model.Incident]
	watcher *fsnotify.Watcher
}

// NewFileStore loads path once and returns a ready Store.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path}
	if err := fs.reload(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) reload() error {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return fmt.Errorf("incident: read %s: %w", fs.path, err)
	}
	var incidents []model.Incident
	if err := json.Unmarshal(data, &incidents); err != nil {
		return fmt.Errorf("incident: parse %s: %w", fs.path, err)
	}
	fs.current.Store(&incidents)
	return nil
}

// Watch starts an fsnotify watcher that reloads on write.
func (fs *FileStore) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("incident: start watcher: %w", err)
	}
	if err := w.Add(fs.path); err != nil {
		w.Close()
		return fmt.Errorf("incident: watch %s: %w", fs.path, err)
	}
	fs.watcher = w
	go fs.watchLoop()
	return nil
}

func (fs *FileStore) watchLoop() {
	for {
		select {
		case ev, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := fs.reload(); err != nil {
				slog.Warn("incident: reload failed", "path", fs.path, "err", err)
			} else {
				slog.Info("incident: reloaded", "path", fs.path)
			}
		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("incident: watcher error", "err", err)
		}
	}
}

// Close stops the hot-reload watcher, if started.
func (fs *FileStore) Close() error {
	if fs.watcher != nil {
		return fs.watcher.Close()
	}
	return nil
}

// Candidates implements Store. The file-backed store returns every loaded
// incident: the corpus is small enough that pre-filtering buys nothing, and
// returning everything guarantees the Historical Evaluator, not the
// store, decides relevance, so scoring is identical across backends.
func (fs *FileStore) Candidates(ctx context.Context, actionType, resourceType string) ([]model.Incident, error) {
	p := fs.current.Load()
	if p == nil {
		return nil, nil
	}
	out := make([]model.Incident, len(*p))
	copy(out, *p)
	return out, nil
}

// Search ranks incidents by BM25 relevance to a free-text query over their
// title, summary, and tags. It backs free-text incident lookup and is not
// on the per-action evaluation hot path.
func (fs *FileStore) Search(ctx context.Context, query string, limit int) ([]model.Incident, error) {
	p := fs.current.Load()
	if p == nil {
		return nil, nil
	}
	docs := make([]bm25Doc, len(*p))
	for i, inc := range *p {
		docs[i] = bm25Doc{
			terms: tokenize(strings.Join([]string{inc.Title, inc.Summary, strings.Join(inc.Tags, " ")}, " ")),
		}
	}
	scores := bm25Score(docs, tokenize(query))

	type scored struct {
		inc   model.Incident
		score float64
	}
	ranked := make([]scored, len(*p))
	for i, inc := range *p {
		ranked[i] = scored{inc: inc, score: scores[i]}
	}
	// Simple insertion sort by descending score; corpora here are small.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].score > ranked[j-1].score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	if limit <= 0 || limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]model.Incident, 0, limit)
	for _, r := range ranked[:limit] {
		if r.score <= 0 {
			continue
		}
		out = append(out, r.inc)
	}
	return out, nil
}

var _ Store = (*FileStore)(nil)

// --- minimal BM25 ---

type bm25Doc struct {
	terms []string
}

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

// bm25Score computes a BM25 relevance score for each document against query.
func bm25Score(docs []bm25Doc, query []string) []float64 {
	n := len(docs)
	scores := make([]float64, n)
	if n == 0 || len(query) == 0 {
		return scores
	}

	var totalLen int
	df := make(map[string]int)
	tf := make([]map[string]int, n)
	for i, d := range docs {
		tf[i] = make(map[string]int)
		totalLen += len(d.terms)
		seen := make(map[string]bool)
		for _, t := range d.terms {
			tf[i][t]++
			if !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
	}
	avgLen := float64(totalLen) / float64(n)

	for i, d := range docs {
		docLen := float64(len(d.terms))
		var score float64
		for _, q := range query {
			f := float64(tf[i][q])
			if f == 0 {
				continue
			}
			n_q := float64(df[q])
			idf := math.Log(1 + (float64(n)-n_q+0.5)/(n_q+0.5))
			score += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
		}
		scores[i] = score
	}
	return scores
}
