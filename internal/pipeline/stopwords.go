package pipeline

import (
	"embed"
	"fmt"
	"os"
	"strings"
)

//go:embed stopwords/*.txt
var stopwordFS embed.FS

// embeddedStopwords maps supported language codes to their bundled lists.
var embeddedStopwords = map[string]string{
	"ru": "stopwords/ru.txt",
	"en": "stopwords/en.txt",
}

// loadStopwords resolves the stopword set for a language. An override file,
// when given, takes precedence; if it cannot be read the embedded list for
// the language is used instead, and only when both are unavailable does the
// load fail. Languages without a bundled list yield an empty set so that
// removal becomes a no-op rather than an error.
func loadStopwords(language, overridePath string) (map[string]struct{}, error) {
	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err == nil {
			return parseStopwords(data), nil
		}

		name, ok := embeddedStopwords[language]
		if !ok {
			return nil, fmt.Errorf("reading stopword list %s with no bundled fallback for language %q: %w", overridePath, language, err)
		}
		embedded, embeddedErr := stopwordFS.ReadFile(name)
		if embeddedErr != nil {
			return nil, fmt.Errorf("reading stopword list %s: %w", overridePath, err)
		}
		return parseStopwords(embedded), nil
	}

	name, ok := embeddedStopwords[language]
	if !ok {
		return nil, nil
	}
	data, err := stopwordFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading bundled stopword list for language %q: %w", language, err)
	}
	return parseStopwords(data), nil
}

// parseStopwords reads one word per line, skipping blanks and # comments.
func parseStopwords(data []byte) map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		word := strings.TrimSpace(line)
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		set[strings.ToLower(word)] = struct{}{}
	}
	return set
}
