// Package pdftext extracts plain text from PDF files with the pdftotext tool.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const toolName = "pdftotext"

var (
	ErrToolNotFound = errors.New("pdftotext not found in PATH; install poppler-utils")
	ErrNotPDF       = errors.New("input is not a PDF document")
	ErrEmptyText    = errors.New("no text could be extracted from the PDF")
)

// CommandRunner executes an external command and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Extractor converts PDF bytes to text.
type Extractor struct {
	runner   CommandRunner
	lookPath func(string) (string, error)
	tempDir  string
}

type Option func(*Extractor)

func WithRunner(r CommandRunner) Option {
	return func(e *Extractor) { e.runner = r }
}

func WithLookPath(fn func(string) (string, error)) Option {
	return func(e *Extractor) { e.lookPath = fn }
}

func WithTempDir(dir string) Option {
	return func(e *Extractor) { e.tempDir = dir }
}

func New(opts ...Option) *Extractor {
	e := &Extractor{
		runner:   execRunner{},
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Available reports whether pdftotext can be found.
func (e *Extractor) Available() bool {
	_, err := e.lookPath(toolName)
	return err == nil
}

// Extract writes data to a temporary file and returns the text pdftotext prints for it.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return "", ErrNotPDF
	}

	tool, err := e.lookPath(toolName)
	if err != nil {
		return "", ErrToolNotFound
	}

	f, err := os.CreateTemp(e.tempDir, "resume-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	out, err := e.runner.Run(ctx, tool, "-layout", "-enc", "UTF-8", filepath.Clean(path), "-")
	if err != nil {
		return "", fmt.Errorf("run %s: %w", toolName, err)
	}

	text := normalise(string(out))
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

// normalise drops form feeds and trailing spaces and squeezes runs of blank lines.
func normalise(s string) string {
	s = strings.ReplaceAll(s, "\f", "\n")
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var b strings.Builder
	blank := 0
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}
