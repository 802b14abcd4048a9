package coverletter

import (
	"strings"

	"github.com/spigell/hh-artifacts/internal/feature"
	"github.com/spigell/hh-artifacts/internal/report"
)

var (
	_ feature.Formatter = (*LetterV1)(nil)
	_ report.Documenter = (*LetterV1)(nil)
	_ feature.Formatter = (*LetterV2)(nil)
	_ report.Documenter = (*LetterV2)(nil)
)

// LetterV1 is a plain three-part letter.
type LetterV1 struct {
	Position string `json:"position"`
	Greeting string `json:"greeting"`
	Body     string `json:"body"`
	Closing  string `json:"closing"`
}

func (l *LetterV1) Format() string {
	return joinBlocks(l.Greeting, l.Body, l.Closing)
}

func (l *LetterV1) Document() report.Document {
	return report.Document{
		Title:    "Cover letter",
		Subtitle: l.Position,
		Sections: []report.Section{{
			Paragraphs: []string{l.Greeting, l.Body, l.Closing},
		}},
	}
}

// LetterV2 adds a subject line and the key points the letter argues.
type LetterV2 struct {
	Position   string   `json:"position"`
	Subject    string   `json:"subject"`
	Greeting   string   `json:"greeting"`
	Paragraphs []string `json:"paragraphs"`
	KeyPoints  []string `json:"key_points"`
	Closing    string   `json:"closing"`
}

func (l *LetterV2) Format() string {
	blocks := []string{"Subject: " + l.Subject, l.Greeting}
	blocks = append(blocks, l.Paragraphs...)
	blocks = append(blocks, l.Closing)
	return joinBlocks(blocks...)
}

func (l *LetterV2) Document() report.Document {
	paragraphs := append([]string{l.Greeting}, l.Paragraphs...)
	paragraphs = append(paragraphs, l.Closing)

	doc := report.Document{
		Title:    l.Subject,
		Subtitle: l.Position,
		Sections: []report.Section{{Paragraphs: paragraphs}},
	}
	if len(l.KeyPoints) > 0 {
		doc.Sections = append(doc.Sections, report.Section{Heading: "Key points", Bullets: l.KeyPoints})
	}
	return doc
}

func joinBlocks(blocks ...string) string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return strings.Join(out, "\n\n")
}
