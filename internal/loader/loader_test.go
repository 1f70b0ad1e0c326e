package loader_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textsource/engine/internal/loader"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeDocx(t *testing.T, dir, name string, paragraphs []string) string {
	t.Helper()

	body := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	for _, p := range paragraphs {
		if p == "" {
			body += `<w:p/>`
			continue
		}
		body += `<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`
	}
	body += `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func collectDocs(t *testing.T, l *loader.ChunkedLoader) []loader.Document {
	t.Helper()
	var docs []loader.Document
	for batch, err := range l.Batches(context.Background()) {
		require.NoError(t, err)
		docs = append(docs, batch...)
	}
	return docs
}

func TestChunkedLoader_TxtLines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "первая строка\n\nвторая строка\n")

	docs := collectDocs(t, loader.New(dir, 10))

	require.Len(t, docs, 2)
	assert.Equal(t, "первая строка", docs[0].Text)
	assert.Equal(t, 1, docs[0].Metadata["line_number"])
	assert.Equal(t, "вторая строка", docs[1].Text)
	// Blank lines are skipped but still counted.
	assert.Equal(t, 3, docs[1].Metadata["line_number"])
}

func TestChunkedLoader_ChunkSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "один\nдва\nтри\nчетыре\nпять\n")

	var sizes []int
	for batch, err := range loader.New(dir, 2).Batches(context.Background()) {
		require.NoError(t, err)
		sizes = append(sizes, len(batch))
	}

	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestChunkedLoader_LexicalOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "втор\n")
	writeFile(t, dir, "a.txt", "перв\n")

	docs := collectDocs(t, loader.New(dir, 10))

	require.Len(t, docs, 2)
	assert.Equal(t, "a.txt", filepath.Base(docs[0].Path))
	assert.Equal(t, "b.txt", filepath.Base(docs[1].Path))
}

func TestChunkedLoader_CSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "table.csv", "name,note\nкот,сидит\n,,\n")

	docs := collectDocs(t, loader.New(dir, 10))

	require.Len(t, docs, 1)
	assert.Equal(t, "кот сидит", docs[0].Text)
	assert.Equal(t, 1, docs[0].Metadata["csv_row"])
	assert.Equal(t, []string{"name", "note"}, docs[0].Metadata["header"])
}

func TestChunkedLoader_HTMLWholeFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page.html", "<p>кот</p>\n<p>пёс</p>\n")

	docs := collectDocs(t, loader.New(dir, 10))

	require.Len(t, docs, 1)
	// Markup survives loading; stripping is the pipeline's job.
	assert.Contains(t, docs[0].Text, "<p>кот</p>")
	assert.Equal(t, ".html", docs[0].Metadata["suffix"])
}

func TestChunkedLoader_Docx(t *testing.T) {
	dir := t.TempDir()
	writeDocx(t, dir, "doc.docx", []string{"Первый абзац", "", "Второй абзац"})

	docs := collectDocs(t, loader.New(dir, 10))

	require.Len(t, docs, 2)
	assert.Equal(t, "Первый абзац", docs[0].Text)
	assert.Equal(t, 1, docs[0].Metadata["paragraph"])
	assert.Equal(t, "Второй абзац", docs[1].Text)
	assert.Equal(t, 3, docs[1].Metadata["paragraph"])
}

func TestChunkedLoader_MalformedDocx(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.docx", "not a zip archive")

	docs := collectDocs(t, loader.New(dir, 10))

	assert.Empty(t, docs)
}

func TestChunkedLoader_SkipsUnknownSuffixes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data.bin", "кот сидит")

	docs := collectDocs(t, loader.New(dir, 10))

	assert.Empty(t, docs)
}

func TestChunkedLoader_MissingRoot(t *testing.T) {
	l := loader.New(filepath.Join(t.TempDir(), "missing"), 10)

	var firstErr error
	for _, err := range l.Batches(context.Background()) {
		firstErr = err
		break
	}

	require.Error(t, firstErr)
	assert.ErrorIs(t, firstErr, fs.ErrNotExist)
}

func TestChunkedLoader_InvalidUTF8Dropped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "кот \xff\xfe сидит\n")

	docs := collectDocs(t, loader.New(dir, 10))

	require.Len(t, docs, 1)
	assert.True(t, utf8.ValidString(docs[0].Text))
	assert.Contains(t, docs[0].Text, "кот")
	assert.Contains(t, docs[0].Text, "сидит")
}

func TestChunkedLoader_EarlyStop(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "один\nдва\nтри\nчетыре\n")

	batches := 0
	for batch, err := range loader.New(dir, 1).Batches(context.Background()) {
		require.NoError(t, err)
		require.Len(t, batch, 1)
		batches++
		if batches == 2 {
			break
		}
	}

	assert.Equal(t, 2, batches)
}

func TestChunkedLoader_ContextCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "один\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var firstErr error
	for _, err := range loader.New(dir, 10).Batches(ctx) {
		firstErr = err
		break
	}

	assert.ErrorIs(t, firstErr, context.Canceled)
}

func TestUnits_Lines(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "один\n\nдва\n")

	var units []loader.Unit
	for unit, err := range loader.Units(path) {
		require.NoError(t, err)
		units = append(units, unit)
	}

	require.Len(t, units, 2)
	assert.Equal(t, loader.Unit{Index: 1, Text: "один", Label: loader.LabelLine}, units[0])
	assert.Equal(t, loader.Unit{Index: 3, Text: "два", Label: loader.LabelLine}, units[1])
}

func TestUnits_Docx(t *testing.T) {
	dir := t.TempDir()
	path := writeDocx(t, dir, "doc.docx", []string{"Первый", "", "Второй"})

	var units []loader.Unit
	for unit, err := range loader.Units(path) {
		require.NoError(t, err)
		units = append(units, unit)
	}

	require.Len(t, units, 2)
	assert.Equal(t, loader.Unit{Index: 1, Text: "Первый", Label: loader.LabelParagraph}, units[0])
	assert.Equal(t, loader.Unit{Index: 3, Text: "Второй", Label: loader.LabelParagraph}, units[1])
}

func TestUnits_MissingFile(t *testing.T) {
	var firstErr error
	for _, err := range loader.Units(filepath.Join(t.TempDir(), "missing.txt")) {
		firstErr = err
		break
	}

	require.Error(t, firstErr)
	assert.ErrorIs(t, firstErr, fs.ErrNotExist)
}
