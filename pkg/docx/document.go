// Package docx reads and rewrites the paragraph text of WordprocessingML
// (.docx) packages. Only the text of word/document.xml is interpreted; every
// other part of the package is carried through byte for byte.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

const documentPart = "word/document.xml"

var wordNamespaces = map[string]bool{
	"http://schemas.openxmlformats.org/wordprocessingml/2006/main": true,
	"http://purl.oclc.org/ooxml/wordprocessingml/main":             true,
}

// ErrNotDocx is returned when a zip package has no main document part.
var ErrNotDocx = errors.New("docx: package has no " + documentPart)

// Document is an immutable, in-memory .docx package.
type Document struct {
	parts      []part
	body       int
	paragraphs []paragraph
}

type part struct {
	name     string
	method   uint16
	modified time.Time
	data     []byte
}

type paragraph struct {
	texts []textElement
}

// textElement is one <w:t> element; start and end delimit the whole element
// in the document part, tag is its qualified name as written (e.g. "w:t").
type textElement struct {
	start int
	end   int
	tag   string
	text  string
}

func (p paragraph) text() string {
	if len(p.texts) == 1 {
		return p.texts[0].text
	}
	var sb strings.Builder
	for _, t := range p.texts {
		sb.WriteString(t.text)
	}
	return sb.String()
}

// Open reads a .docx file from disk.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	doc, err := Read(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", path, err)
	}
	return doc, nil
}

// Read parses a .docx package held in memory.
func Read(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx package: %w", err)
	}

	doc := &Document{body: -1}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open part %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read part %s: %w", f.Name, err)
		}
		if f.Name == documentPart {
			doc.body = len(doc.parts)
		}
		doc.parts = append(doc.parts, part{
			name:     f.Name,
			method:   f.Method,
			modified: f.Modified,
			data:     content,
		})
	}
	if doc.body < 0 {
		return nil, ErrNotDocx
	}

	doc.paragraphs, err = parseParagraphs(doc.parts[doc.body].data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// parseParagraphs records, for every <w:p>, the <w:t> elements that belong
// to it directly. Paragraphs nested inside a run (text boxes) own their
// own text elements.
func parseParagraphs(body []byte) ([]paragraph, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		paragraphs []paragraph
		open       []int
		inText     bool
		current    textElement
		text       strings.Builder
	)

	for {
		start := int(dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", documentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !wordNamespaces[t.Name.Space] {
				continue
			}
			switch t.Name.Local {
			case "p":
				paragraphs = append(paragraphs, paragraph{})
				open = append(open, len(paragraphs)-1)
			case "t":
				if len(open) == 0 {
					continue
				}
				inText = true
				current = textElement{start: start, tag: rawTagName(body[start:])}
				text.Reset()
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		case xml.EndElement:
			if !wordNamespaces[t.Name.Space] {
				continue
			}
			switch t.Name.Local {
			case "p":
				if len(open) > 0 {
					open = open[:len(open)-1]
				}
			case "t":
				if !inText {
					continue
				}
				current.end = int(dec.InputOffset())
				current.text = text.String()
				idx := open[len(open)-1]
				paragraphs[idx].texts = append(paragraphs[idx].texts, current)
				inText = false
			}
		}
	}
	return paragraphs, nil
}

// rawTagName returns the element name exactly as it appears in b, which
// must start at the '<' of a start tag.
func rawTagName(b []byte) string {
	end := 1
	for end < len(b) {
		switch b[end] {
		case ' ', '\t', '\r', '\n', '>', '/':
			return string(b[1:end])
		}
		end++
	}
	return string(b[1:])
}

// Paragraphs returns the text of every paragraph in document order.
func (d *Document) Paragraphs() []string {
	out := make([]string, len(d.paragraphs))
	for i, p := range d.paragraphs {
		out[i] = p.text()
	}
	return out
}

type edit struct {
	start       int
	end         int
	replacement string
}

// Replace returns a new document in which the text of every paragraph has
// been passed through fn. When fn changes a paragraph, the new text is
// written into the paragraph's first text element and the remaining text
// elements of that paragraph are emptied, so run formatting of the first
// run is kept. The receiver is never modified.
func (d *Document) Replace(fn func(string) string) (*Document, error) {
	var edits []edit
	for _, p := range d.paragraphs {
		if len(p.texts) == 0 {
			continue
		}
		before := p.text()
		after := fn(before)
		if after == before {
			continue
		}
		for i, t := range p.texts {
			e := edit{start: t.start, end: t.end}
			if i == 0 {
				e.replacement = textElementXML(t.tag, after)
			} else {
				e.replacement = "<" + t.tag + "/>"
			}
			edits = append(edits, e)
		}
	}
	if len(edits) == 0 {
		return d.withBody(d.parts[d.body].data)
	}

	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	body := d.parts[d.body].data
	var out bytes.Buffer
	out.Grow(len(body))
	last := 0
	for _, e := range edits {
		out.Write(body[last:e.start])
		out.WriteString(e.replacement)
		last = e.end
	}
	out.Write(body[last:])

	return d.withBody(out.Bytes())
}

func textElementXML(tag, text string) string {
	var buf bytes.Buffer
	buf.WriteString("<" + tag + ` xml:space="preserve">`)
	_ = xml.EscapeText(&buf, []byte(text))
	buf.WriteString("</" + tag + ">")
	return buf.String()
}

// withBody copies the package with a new main document part. Other parts
// share their (never mutated) content with d.
func (d *Document) withBody(body []byte) (*Document, error) {
	paragraphs, err := parseParagraphs(body)
	if err != nil {
		return nil, err
	}
	parts := make([]part, len(d.parts))
	copy(parts, d.parts)
	parts[d.body].data = body
	return &Document{parts: parts, body: d.body, paragraphs: paragraphs}, nil
}

// WriteTo serialises the package as a zip archive.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	for _, p := range d.parts {
		method := p.method
		if method != zip.Store && method != zip.Deflate {
			method = zip.Deflate
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     p.name,
			Method:   method,
			Modified: p.modified,
		})
		if err != nil {
			return cw.n, fmt.Errorf("failed to create part %s: %w", p.name, err)
		}
		if _, err := fw.Write(p.data); err != nil {
			return cw.n, fmt.Errorf("failed to write part %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("failed to finish docx package: %w", err)
	}
	return cw.n, nil
}

// Bytes returns the serialised package.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the package to path.
func (d *Document) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := d.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
