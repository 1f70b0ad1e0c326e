package loader

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// documentXML mirrors the part of word/document.xml we care about. Tags
// match local element names, so the usual w: namespace prefix is ignored.
type documentXML struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

// docxParagraphs returns every paragraph of a DOCX file, blanks included so
// callers see physical positions. A file that is not a readable archive or
// carries malformed XML yields no paragraphs rather than an error; only
// filesystem failures propagate.
func docxParagraphs(path string) ([]string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		return nil, nil
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, nil
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, nil
		}

		var doc documentXML
		if err := xml.Unmarshal(content, &doc); err != nil {
			return nil, nil
		}

		paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
		for _, paragraph := range doc.Body.Paragraphs {
			var text string
			for _, run := range paragraph.Runs {
				for _, t := range run.Text {
					text += t.Content
				}
			}
			paragraphs = append(paragraphs, text)
		}
		return paragraphs, nil
	}
	return nil, nil
}
