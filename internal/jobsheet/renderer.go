package jobsheet

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/diewo77/go-garage/internal/logger"
	"github.com/google/uuid"
)

//go:embed jobsheet.html
var sheetHTML string

var sheetTemplate = template.Must(template.New("jobsheet.html").Parse(sheetHTML))

// Renderer turns sheets into HTML and PDF documents.
type Renderer struct {
	Engine  Engine
	TempDir string
}

// NewRenderer selects the engine by name: "wkhtmltopdf" runs bin, anything
// else lays the sheet out with maroto.
func NewRenderer(engine, bin, tempDir string) *Renderer {
	r := &Renderer{Engine: MarotoEngine{}, TempDir: tempDir}
	if engine == "wkhtmltopdf" {
		r.Engine = NewCommandEngine(bin)
	}
	return r
}

// HTML writes the sheet's HTML document to w.
func (r *Renderer) HTML(w io.Writer, s Sheet) error {
	return sheetTemplate.Execute(w, s)
}

// PDF renders s into a uniquely named temp file, reads it back and removes the
// file whatever happens.
func (r *Renderer) PDF(ctx context.Context, s Sheet) (_ []byte, err error) {
	var html bytes.Buffer
	if err := r.HTML(&html, s); err != nil {
		return nil, fmt.Errorf("render jobsheet html: %w", err)
	}

	path, err := r.createTemp(s.JobID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn(ctx).Err(rmErr).Str("path", path).Msg("remove jobsheet temp file")
		}
	}()

	if err := r.Engine.WritePDF(ctx, s, html.Bytes(), path); err != nil {
		return nil, fmt.Errorf("render jobsheet %d: %w", s.JobID, err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		return nil, fmt.Errorf("chmod jobsheet: %w", err)
	}
	out, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobsheet: %w", err)
	}
	return out, nil
}

func (r *Renderer) createTemp(jobID uint) (string, error) {
	dir := r.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("jobsheet_%d_%s.pdf", jobID, uuid.NewString()))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create jobsheet temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close jobsheet temp file: %w", err)
	}
	return path, nil
}
