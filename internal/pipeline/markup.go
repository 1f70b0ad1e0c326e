package pipeline

import (
	"strings"

	"golang.org/x/net/html"
)

// stripMarkup extracts plain text from HTML/XML using the standard tokenizer.
// Script, style and noscript bodies are dropped; text nodes are joined with
// single spaces. Malformed markup never fails: the tokenizer treats stray
// angle brackets as text and whatever has been collected is returned as-is.
func stripMarkup(raw string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(raw))
	var textBuilder strings.Builder
	skipDepth := 0

	for {
		tokenType := tokenizer.Next()

		switch tokenType {
		case html.ErrorToken:
			// A strings.Reader only errors with EOF; on any other parse
			// failure the text gathered so far is still usable.
			return strings.TrimSpace(textBuilder.String())

		case html.StartTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "script", "style", "noscript":
				skipDepth++
			}

		case html.EndTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}

		case html.TextToken:
			if skipDepth == 0 {
				text := strings.TrimSpace(tokenizer.Token().Data)
				if text != "" {
					textBuilder.WriteString(text)
					textBuilder.WriteByte(' ')
				}
			}
		}
	}
}
