package certificates

import (
	"fmt"
	"sort"
	"strings"

	"ceue-certificates/certgen/pkg/docx"
)

// Merge replaces every "{{ name }}" token in the template's paragraphs with
// the matching value. Tokens without a value are left as they are and
// substituted text is never expanded again. tpl is not modified.
func Merge(tpl *docx.Document, values Values) (*docx.Document, error) {
	if tpl == nil {
		return nil, fmt.Errorf("template is nil")
	}
	merged, err := tpl.Replace(NewReplacer(values).Replace)
	if err != nil {
		return nil, fmt.Errorf("failed to merge template: %w", err)
	}
	return merged, nil
}

// NewReplacer builds a single-pass literal replacer for values. It also
// serves the e-mail subject and body templates.
func NewReplacer(values Values) *strings.Replacer {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, Token(k), fmt.Sprint(values[k]))
	}
	return strings.NewReplacer(pairs...)
}

// MergeText applies values to a plain string.
func MergeText(text string, values Values) string {
	return NewReplacer(values).Replace(text)
}
