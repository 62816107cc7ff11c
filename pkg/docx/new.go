package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"time"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

const relationshipsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

// New builds a minimal package with one single-run paragraph per argument.
func New(paragraphs ...string) (*Document, error) {
	var body bytes.Buffer
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, text := range paragraphs {
		if text == "" {
			body.WriteString("<w:p/>")
			continue
		}
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		_ = xml.EscapeText(&body, []byte(text))
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	body.WriteString(`<w:sectPr/></w:body></w:document>`)

	now := time.Now()
	doc := &Document{
		parts: []part{
			{name: "[Content_Types].xml", method: zip.Deflate, modified: now, data: []byte(contentTypesXML)},
			{name: "_rels/.rels", method: zip.Deflate, modified: now, data: []byte(relationshipsXML)},
			{name: documentPart, method: zip.Deflate, modified: now, data: body.Bytes()},
		},
		body: 2,
	}

	var err error
	doc.paragraphs, err = parseParagraphs(doc.parts[doc.body].data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
