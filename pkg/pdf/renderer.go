// Package pdf turns merged certificate documents into PDF files. Renderers
// are external collaborators: the certificate pipeline only depends on the
// Renderer interface.
package pdf

import (
	"context"
	"sync"

	"ceue-certificates/certgen/pkg/docx"
)

// Renderer materialises doc as a PDF at dst.
type Renderer interface {
	Render(ctx context.Context, doc *docx.Document, dst string) error
}

// RenderFunc adapts a function to the Renderer interface.
type RenderFunc func(ctx context.Context, doc *docx.Document, dst string) error

func (f RenderFunc) Render(ctx context.Context, doc *docx.Document, dst string) error {
	return f(ctx, doc, dst)
}

type serialized struct {
	mu sync.Mutex
	r  Renderer
}

// Serialized guards a renderer that must not be invoked concurrently.
func Serialized(r Renderer) Renderer {
	return &serialized{r: r}
}

func (s *serialized) Render(ctx context.Context, doc *docx.Document, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Render(ctx, doc, dst)
}
