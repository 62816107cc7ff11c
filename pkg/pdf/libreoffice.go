package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"ceue-certificates/certgen/pkg/docx"
)

// ErrOfficeNotFound is returned when no LibreOffice binary can be located.
var ErrOfficeNotFound = errors.New("libreoffice (soffice) not found")

// LibreOffice converts documents with a headless soffice process. Every call
// uses its own scratch directory and user profile, so calls do not share
// state.
type LibreOffice struct {
	binary string
	logger *zap.Logger
}

// NewLibreOffice uses binary when set, otherwise searches for soffice.
func NewLibreOffice(binary string, logger *zap.Logger) (*LibreOffice, error) {
	if binary == "" {
		p, ok := findOffice()
		if !ok {
			return nil, ErrOfficeNotFound
		}
		binary = p
	}
	return &LibreOffice{binary: binary, logger: logger}, nil
}

// Binary returns the soffice executable in use.
func (l *LibreOffice) Binary() string {
	return l.binary
}

func (l *LibreOffice) Render(ctx context.Context, doc *docx.Document, dst string) error {
	work, err := os.MkdirTemp("", "certgen-render-*")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(work)

	src := filepath.Join(work, "certificate.docx")
	if err := doc.Save(src); err != nil {
		return fmt.Errorf("failed to save merged document: %w", err)
	}

	cmd := exec.CommandContext(ctx, l.binary,
		"-env:UserInstallation="+fileURL(filepath.Join(work, "profile")),
		"--headless",
		"--norestore",
		"--convert-to", "pdf",
		"--outdir", work,
		src,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	l.logger.Debug("Running soffice", zap.String("binary", l.binary), zap.String("destination", dst))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("soffice failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	out := filepath.Join(work, "certificate.pdf")
	if _, err := os.Stat(out); err != nil {
		return fmt.Errorf("soffice produced no pdf: %s", strings.TrimSpace(stdout.String()))
	}
	return moveFile(out, dst)
}

func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

// moveFile renames src to dst, copying when they live on different
// filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return out.Close()
}
