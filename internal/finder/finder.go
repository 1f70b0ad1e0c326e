package finder

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/textsource/engine/internal/config"
	"github.com/textsource/engine/internal/index"
	"github.com/textsource/engine/internal/loader"
	"github.com/textsource/engine/internal/pipeline"
)

// SourceMatch is one corpus file ranked against a query.
type SourceMatch struct {
	Path  string
	Score float64
}

// SourcePosition is one fragment of a matched file that shares tokens with
// the query. Index is the 1-based line or paragraph number and Score is the
// file's aggregate similarity, not a per-fragment value.
type SourcePosition struct {
	Path    string
	Index   int
	Snippet string
	Score   float64
	Label   string
}

// LocateOptions tunes position scanning. Zero values fall back to the
// configured defaults; negative values disable the corresponding limit.
type LocateOptions struct {
	TopK       int
	MaxPerFile int
	SnippetLen int
}

// Stats captures what the last BuildIndex run saw.
type Stats struct {
	Files         int
	Documents     int
	BuildDuration time.Duration
}

// Finder ties the loader, the normalization pipeline and the vector index
// into the two-phase search: rank whole files by similarity, then re-scan
// the best ones for the exact fragments.
type Finder struct {
	Config   *config.Config
	Logger   *logrus.Entry
	Loader   *loader.ChunkedLoader
	Pipeline *pipeline.Pipeline
	Index    *index.Index

	mu    sync.RWMutex
	stats Stats
}

// New wires a finder. The pipeline and index are built from the
// configuration; the loader is injected so callers choose the corpus.
func New(cfg *config.Config, logger *logrus.Entry, ld *loader.ChunkedLoader) (*Finder, error) {
	pipe, err := pipeline.NewPipeline(cfg.Pipeline)
	if err != nil {
		return nil, err
	}

	return &Finder{
		Config:   cfg,
		Logger:   logger,
		Loader:   ld,
		Pipeline: pipe,
		Index:    index.New(cfg.Index.Features),
	}, nil
}

// BuildIndex loads the corpus in chunks, normalizes each batch across a
// worker pool and appends the results to the index. Documents keep their
// corpus order through the parallel hop, so index rows follow the walk
// exactly. Must complete before any queries run.
func (f *Finder) BuildIndex(ctx context.Context) error {
	start := time.Now()

	pool, err := ants.NewPool(f.workers())
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	files := make(map[string]struct{})

	for batch, err := range f.Loader.Batches(ctx) {
		if err != nil {
			return err
		}

		docs := f.normalizeBatch(pool, batch)
		appended := f.Index.Append(docs)
		for _, doc := range batch {
			files[doc.Path] = struct{}{}
		}

		f.Logger.WithFields(logrus.Fields{
			"loaded":  len(batch),
			"indexed": appended,
		}).Debug("Indexed batch")
	}

	f.mu.Lock()
	f.stats = Stats{
		Files:         len(files),
		Documents:     f.Index.Size(),
		BuildDuration: time.Since(start),
	}
	stats := f.stats
	f.mu.Unlock()

	f.Logger.WithFields(logrus.Fields{
		"files":     stats.Files,
		"documents": stats.Documents,
		"elapsed":   stats.BuildDuration,
	}).Info("Corpus indexed")

	return nil
}

// normalizeBatch tokenizes a batch on the worker pool. Each worker writes
// into its own slot, keeping result order aligned with the input.
func (f *Finder) normalizeBatch(pool *ants.Pool, batch []loader.Document) []*index.Document {
	docs := make([]*index.Document, len(batch))
	var wg sync.WaitGroup

	for i := range batch {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			doc := batch[i]
			docs[i] = &index.Document{
				Path:     doc.Path,
				Text:     doc.Text,
				Metadata: doc.Metadata,
				Tokens:   f.Pipeline.Transform(doc.Text),
			}
		}
		if err := pool.Submit(task); err != nil {
			// Pool rejected the task; run it on the caller instead.
			task()
		}
	}
	wg.Wait()

	return docs
}

// FindSources ranks corpus files against the query text. Every indexed row
// is scored, each file keeps its best row score, and only then is the
// ranking cut to topK, so a file's strongest fragment always counts. Tied
// files keep the order their rows were indexed in. A topK of zero or less
// returns every matching file; a query that normalizes to no tokens
// matches nothing.
func (f *Finder) FindSources(text string, topK int) []SourceMatch {
	tokens := f.Pipeline.Transform(text)
	if len(tokens) == 0 {
		return nil
	}

	hits := f.Index.Query(tokens, 0)

	best := make(map[string]float64)
	var order []string
	for _, hit := range hits {
		path := hit.Document.Path
		score, seen := best[path]
		if !seen {
			order = append(order, path)
		}
		if hit.Score > score {
			best[path] = hit.Score
		}
	}

	matches := make([]SourceMatch, 0, len(order))
	for _, path := range order {
		matches = append(matches, SourceMatch{Path: path, Score: best[path]})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// FindSourcesFromFile reads a query document and ranks corpus files against
// its content. Invalid UTF-8 in the file is dropped rather than failing.
func (f *Finder) FindSourcesFromFile(path string, topK int) ([]SourceMatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	return f.FindSources(strings.ToValidUTF8(string(data), ""), topK), nil
}

// LocateSourcePositions re-scans the best matching files and reports the
// natural units (lines or paragraphs) sharing at least one normalized token
// with the query. Positions carry their file's aggregate score; similarity
// is not recomputed per fragment. Files that cannot be read at scan time
// are skipped.
func (f *Finder) LocateSourcePositions(text string, opts LocateOptions) []SourcePosition {
	opts = f.fillDefaults(opts)

	matches := f.FindSources(text, opts.TopK)
	if len(matches) == 0 {
		return nil
	}

	queryTokens := f.Pipeline.TokenSet(text)

	var positions []SourcePosition
	for _, match := range matches {
		found := 0
		for unit, err := range loader.Units(match.Path) {
			if err != nil {
				f.Logger.WithError(err).WithField("path", match.Path).
					Warn("Skipping unreadable file during position scan")
				break
			}
			if !f.overlaps(queryTokens, unit.Text) {
				continue
			}

			positions = append(positions, SourcePosition{
				Path:    match.Path,
				Index:   unit.Index,
				Snippet: truncateRunes(unit.Text, opts.SnippetLen),
				Score:   match.Score,
				Label:   unit.Label,
			})
			found++
			if opts.MaxPerFile > 0 && found >= opts.MaxPerFile {
				break
			}
		}
	}
	return positions
}

// Stats reports corpus counts captured by the last BuildIndex.
func (f *Finder) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.stats
}

func (f *Finder) fillDefaults(opts LocateOptions) LocateOptions {
	if opts.TopK == 0 {
		opts.TopK = f.Config.Finder.TopK
	}
	if opts.MaxPerFile == 0 {
		opts.MaxPerFile = f.Config.Finder.MaxPositionsPerFile
	}
	if opts.SnippetLen == 0 {
		opts.SnippetLen = f.Config.Finder.SnippetLength
	}
	return opts
}

func (f *Finder) workers() int {
	if f.Config.Finder.Workers > 0 {
		return f.Config.Finder.Workers
	}
	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	return workers
}

// overlaps reports whether any normalized token of text is in the query set.
func (f *Finder) overlaps(query map[string]struct{}, text string) bool {
	for _, token := range f.Pipeline.Transform(text) {
		if _, ok := query[token]; ok {
			return true
		}
	}
	return false
}

// truncateRunes shortens s to at most limit runes, trimming trailing
// whitespace before the ellipsis. Counting runes keeps multi-byte
// characters intact.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimRightFunc(string(runes[:limit]), unicode.IsSpace) + "..."
}
