// Package report renders generated artifacts as PDF documents.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

var ErrNotRenderable = errors.New("result cannot be rendered as a document")

// Document is the layout-free content of a report.
type Document struct {
	Title    string
	Subtitle string
	Sections []Section
}

type Section struct {
	Heading    string
	Paragraphs []string
	Bullets    []string
}

// Documenter is implemented by results that know how to lay themselves out as a report.
type Documenter interface {
	Document() Document
}

type formatter interface {
	Format() string
}

// DocumentFor returns the document of a generation result. Results that only
// have a text rendering become a single-section document titled title.
func DocumentFor(result any, title string) (Document, error) {
	switch r := result.(type) {
	case Documenter:
		return r.Document(), nil
	case formatter:
		return Document{
			Title:    title,
			Sections: []Section{{Paragraphs: splitParagraphs(r.Format())}},
		}, nil
	default:
		return Document{}, ErrNotRenderable
	}
}

// Config configures the PDF renderer. With FontPath set, text is rendered with
// that TrueType font and any UTF-8 input is supported; otherwise the core
// Helvetica font is used and text is translated to cp1252.
type Config struct {
	FontPath     string
	BoldFontPath string
	Author       string
	Now          func() time.Time
}

// Renderer turns documents into PDF bytes.
type Renderer struct {
	cfg Config
}

func NewRenderer(cfg Config) *Renderer {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Renderer{cfg: cfg}
}

const (
	family      = "body"
	coreFamily  = "Helvetica"
	lineHeight  = 6.0
	pageMargin  = 18.0
	titleSize   = 18
	headingSize = 13
	bodySize    = 11
	metaSize    = 9
)

// Render lays out doc on A4 pages and returns the encoded PDF.
func (r *Renderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Title) == "" && len(doc.Sections) == 0 {
		return nil, errors.New("document is empty")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("hh-artifacts", true)
	if r.cfg.Author != "" {
		pdf.SetAuthor(r.cfg.Author, true)
	}
	pdf.SetCreationDate(r.cfg.Now())

	fontFamily, tr := r.setupFonts(pdf)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(fontFamily, "", metaSize)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 5, fmt.Sprintf("%d / {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont(fontFamily, "B", titleSize)
		pdf.SetTextColor(20, 20, 20)
		pdf.MultiCell(0, 9, tr(doc.Title), "", "L", false)
	}
	if doc.Subtitle != "" {
		pdf.SetFont(fontFamily, "", bodySize)
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, lineHeight, tr(doc.Subtitle), "", "L", false)
	}
	pdf.Ln(4)

	for _, section := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if section.Heading != "" {
			pdf.Ln(2)
			pdf.SetFont(fontFamily, "B", headingSize)
			pdf.SetTextColor(30, 60, 110)
			pdf.MultiCell(0, 7, tr(section.Heading), "", "L", false)
			pdf.Ln(1)
		}

		pdf.SetFont(fontFamily, "", bodySize)
		pdf.SetTextColor(20, 20, 20)
		for _, p := range section.Paragraphs {
			if strings.TrimSpace(p) == "" {
				continue
			}
			pdf.MultiCell(0, lineHeight, tr(p), "", "J", false)
			pdf.Ln(2)
		}
		for _, b := range section.Bullets {
			if strings.TrimSpace(b) == "" {
				continue
			}
			pdf.SetX(pageMargin + 4)
			pdf.MultiCell(0, lineHeight, tr("- "+b), "", "L", false)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) setupFonts(pdf *fpdf.Fpdf) (string, func(string) string) {
	if r.cfg.FontPath == "" {
		return coreFamily, pdf.UnicodeTranslatorFromDescriptor("")
	}

	bold := r.cfg.BoldFontPath
	if bold == "" {
		bold = r.cfg.FontPath
	}
	pdf.AddUTF8Font(family, "", r.cfg.FontPath)
	pdf.AddUTF8Font(family, "B", bold)
	return family, func(s string) string { return s }
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
