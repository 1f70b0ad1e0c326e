package loader

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// Unit labels reported in located positions.
const (
	LabelLine      = "line"
	LabelParagraph = "paragraph"
)

// Lines in corpus files may be long; the default scanner limit is too small.
const maxLineBytes = 1 << 20

// Document is a loaded unit of source text with its origin recorded in
// Metadata. Tokens are attached later by whoever indexes it.
type Document struct {
	Path     string
	Text     string
	Metadata map[string]any
}

// Unit is a natural fragment of one file: a line for text formats, a
// paragraph for DOCX. Index is the physical 1-based position, so blank
// units are skipped but still counted.
type Unit struct {
	Index int
	Text  string
	Label string
}

// ChunkedLoader walks a corpus directory and yields documents in bounded
// batches, so arbitrarily large corpora never have to fit in memory at
// once.
type ChunkedLoader struct {
	root      string
	chunkSize int
}

// New creates a loader over the corpus root. Batches hold at most
// chunkSize documents; values below one are raised to one.
func New(root string, chunkSize int) *ChunkedLoader {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &ChunkedLoader{root: root, chunkSize: chunkSize}
}

// Root reports the corpus root the loader walks.
func (l *ChunkedLoader) Root() string { return l.root }

// Batches walks the corpus in lexical order and yields documents in chunks
// of at most the configured size. Files are split per format: lines for
// .txt, rows for .csv, paragraphs for .docx, whole files for .html, and
// unrecognized suffixes are skipped. A missing root yields an error that
// satisfies errors.Is(err, fs.ErrNotExist).
func (l *ChunkedLoader) Batches(ctx context.Context) iter.Seq2[[]Document, error] {
	return func(yield func([]Document, error) bool) {
		batch := make([]Document, 0, l.chunkSize)
		stopped := false

		flush := func() bool {
			if len(batch) == 0 {
				return true
			}
			full := batch
			batch = make([]Document, 0, l.chunkSize)
			return yield(full, nil)
		}

		walkErr := filepath.WalkDir(l.root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if entry.IsDir() {
				return nil
			}

			docs, err := loadFile(path)
			if err != nil {
				return err
			}
			for _, doc := range docs {
				batch = append(batch, doc)
				if len(batch) == l.chunkSize {
					if !flush() {
						stopped = true
						return fs.SkipAll
					}
				}
			}
			return nil
		})

		if stopped {
			return
		}
		if walkErr != nil {
			yield(nil, fmt.Errorf("walking corpus: %w", walkErr))
			return
		}
		flush()
	}
}

// Units yields the natural fragments of one file for position scanning:
// paragraphs for DOCX, raw lines for everything else.
func Units(path string) iter.Seq2[Unit, error] {
	if strings.EqualFold(filepath.Ext(path), ".docx") {
		return docxUnits(path)
	}
	return lineUnits(path)
}

// loadFile splits one file into documents according to its suffix.
func loadFile(path string) ([]Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return loadLines(path)
	case ".csv":
		return loadCSVRows(path)
	case ".html", ".htm":
		return loadWholeFile(path)
	case ".docx":
		return loadDocxParagraphs(path)
	default:
		return nil, nil
	}
}

func loadLines(path string) ([]Document, error) {
	var docs []Document
	for unit, err := range lineUnits(path) {
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{
			Path:     path,
			Text:     unit.Text,
			Metadata: map[string]any{"line_number": unit.Index},
		})
	}
	return docs, nil
}

func loadCSVRows(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	reader := csv.NewReader(strings.NewReader(strings.ToValidUTF8(string(data), "")))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	var docs []Document
	for rowNo := 1; ; rowNo++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}

		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cells = append(cells, strings.TrimSpace(cell))
		}
		text := strings.Join(cells, " ")
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, Document{
			Path:     path,
			Text:     text,
			Metadata: map[string]any{"csv_row": rowNo, "header": header},
		})
	}
	return docs, nil
}

func loadWholeFile(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	text := strings.ToValidUTF8(string(data), "")
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []Document{{
		Path:     path,
		Text:     text,
		Metadata: map[string]any{"suffix": strings.ToLower(filepath.Ext(path))},
	}}, nil
}

func loadDocxParagraphs(path string) ([]Document, error) {
	var docs []Document
	for unit, err := range docxUnits(path) {
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{
			Path:     path,
			Text:     unit.Text,
			Metadata: map[string]any{"paragraph": unit.Index},
		})
	}
	return docs, nil
}

// lineUnits yields the non-blank lines of a file with their physical
// 1-based line numbers. Invalid UTF-8 sequences are dropped rather than
// failing the read.
func lineUnits(path string) iter.Seq2[Unit, error] {
	return func(yield func(Unit, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(Unit{}, fmt.Errorf("opening %s: %w", path, err))
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

		lineNo := 0
		for scanner.Scan() {
			lineNo++
			text := strings.TrimSpace(strings.ToValidUTF8(scanner.Text(), ""))
			if text == "" {
				continue
			}
			if !yield(Unit{Index: lineNo, Text: text, Label: LabelLine}, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(Unit{}, fmt.Errorf("reading %s: %w", path, err))
		}
	}
}

// docxUnits yields the non-blank paragraphs of a DOCX file with their
// physical 1-based positions.
func docxUnits(path string) iter.Seq2[Unit, error] {
	return func(yield func(Unit, error) bool) {
		paragraphs, err := docxParagraphs(path)
		if err != nil {
			yield(Unit{}, err)
			return
		}
		for i, paragraph := range paragraphs {
			text := strings.TrimSpace(paragraph)
			if text == "" {
				continue
			}
			if !yield(Unit{Index: i + 1, Text: text, Label: LabelParagraph}, nil) {
				return
			}
		}
	}
}
