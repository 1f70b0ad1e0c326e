package index

// Document is one indexable unit of a source file. It is assembled fully
// formed, Tokens already normalized, and never mutated after being appended.
type Document struct {
	Path     string
	Text     string
	Metadata map[string]any
	Tokens   []string
}
