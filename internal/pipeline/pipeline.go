package pipeline

import (
	"strings"

	"github.com/kljensen/snowball/english"
	"github.com/kljensen/snowball/russian"
	"github.com/textsource/engine/internal/config"
)

// stemFunc reduces a single token to its stem.
type stemFunc func(string) string

// Pipeline normalizes raw text into canonical lowercase tokens. Stopword
// sets and the stemmer are resolved once at construction, so Transform
// itself never fails and a built Pipeline is safe for concurrent use.
type Pipeline struct {
	language  string
	stopwords map[string]struct{}
	stem      stemFunc
}

// NewPipeline builds a pipeline for the configured language. It fails only
// when stopword removal is requested and neither the override file nor a
// bundled list can be read; a language without bundled resources simply
// skips the stages that would need them.
func NewPipeline(cfg config.PipelineConfig) (*Pipeline, error) {
	p := &Pipeline{language: cfg.Language}

	if cfg.RemoveStopwords {
		set, err := loadStopwords(cfg.Language, cfg.StopwordsPath)
		if err != nil {
			return nil, err
		}
		p.stopwords = set
	}
	if cfg.UseStemming {
		p.stem = stemmerFor(cfg.Language)
	}
	return p, nil
}

// Transform runs the full normalization: markup stripping, lowercasing,
// tokenization, stopword removal, stemming. Identical input always yields
// identical output, and re-transforming the joined output is a no-op.
func (p *Pipeline) Transform(text string) []string {
	plain := stripMarkup(text)
	lowered := strings.ToLower(plain)

	tokens := strings.FieldsFunc(lowered, isSeparator)

	if len(p.stopwords) > 0 {
		kept := tokens[:0]
		for _, token := range tokens {
			if _, isStop := p.stopwords[token]; !isStop {
				kept = append(kept, token)
			}
		}
		tokens = kept
	}

	if p.stem != nil {
		for i, token := range tokens {
			tokens[i] = p.stem(token)
		}
	}
	return tokens
}

// TokenSet returns the distinct normalized tokens of text.
func (p *Pipeline) TokenSet(text string) map[string]struct{} {
	tokens := p.Transform(text)
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

// isSeparator reports whether a rune terminates a token. Tokens are runs of
// lowercase Latin or Cyrillic letters, digits and apostrophes; every other
// rune, accented Latin letters included, separates.
func isSeparator(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return false
	case r >= '0' && r <= '9':
		return false
	case r >= 'а' && r <= 'я':
		return false
	case r == 'ё' || r == '\'':
		return false
	}
	return true
}

// stemmerFor resolves the snowball stemmer for a language; languages
// without one keep tokens unchanged.
func stemmerFor(language string) stemFunc {
	switch language {
	case "ru":
		return func(token string) string { return russian.Stem(token, true) }
	case "en":
		return func(token string) string { return english.Stem(token, true) }
	default:
		return nil
	}
}
