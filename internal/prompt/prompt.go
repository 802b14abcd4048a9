// Package prompt assembles LLM prompts from embedded templates.
package prompt

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/spigell/hh-artifacts/internal/feature"
	"github.com/spigell/hh-artifacts/internal/model"
)

const (
	maxUserInstructionRunes = 500
	defaultLanguage         = "the language of the vacancy"
	defaultTone             = "professional"

	partialInputs = "inputs"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	loadOnce  sync.Once
	templates *template.Template
	loadErr   error
)

var funcs = template.FuncMap{
	"join": strings.Join,
}

// Input is the data every feature template receives.
type Input struct {
	Resume       string
	Vacancy      string
	Language     string
	Tone         string
	MaxWords     int
	Instructions string
	Extra        map[string]any
}

// NewInput serialises the records and sanitises the user-supplied options.
func NewInput(resume *model.Resume, vacancy *model.Vacancy, opts feature.Options) (Input, error) {
	resumeJSON, err := json.MarshalIndent(resume, "", "  ")
	if err != nil {
		return Input{}, fmt.Errorf("marshal resume: %w", err)
	}
	vacancyJSON, err := json.MarshalIndent(vacancy, "", "  ")
	if err != nil {
		return Input{}, fmt.Errorf("marshal vacancy: %w", err)
	}

	return Input{
		Resume:       string(resumeJSON),
		Vacancy:      string(vacancyJSON),
		Language:     SanitizeLine(opts.LanguageOr(defaultLanguage)),
		Tone:         SanitizeLine(opts.ToneOr(defaultTone)),
		MaxWords:     opts.MaxWords,
		Instructions: InstructionsBlock(opts.UserInstructions),
		Extra:        map[string]any{},
	}, nil
}

// With returns a copy of the input with key set in Extra.
func (in Input) With(key string, value any) Input {
	extra := make(map[string]any, len(in.Extra)+1)
	for k, v := range in.Extra {
		extra[k] = v
	}
	extra[key] = value
	in.Extra = extra
	return in
}

// Build renders the named template. Unknown names and execution failures are
// reported as *feature.PromptBuildError.
func Build(name string, data any) (string, error) {
	tmpl, err := load()
	if err != nil {
		return "", &feature.PromptBuildError{Template: name, Err: err}
	}

	t := tmpl.Lookup(name + ".tmpl")
	if t == nil {
		return "", &feature.PromptBuildError{Template: name, Err: fmt.Errorf("template not found")}
	}

	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", &feature.PromptBuildError{Template: name, Err: err}
	}

	return strings.TrimSpace(b.String()), nil
}

// Names lists the embedded template names without extension.
func Names() []string {
	tmpl, err := load()
	if err != nil {
		return nil
	}
	var names []string
	for _, t := range tmpl.Templates() {
		name, ok := strings.CutSuffix(t.Name(), ".tmpl")
		if ok && name != partialInputs {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func load() (*template.Template, error) {
	loadOnce.Do(func() {
		templates, loadErr = template.New("prompt").
			Funcs(funcs).
			ParseFS(templateFS, "templates/*.tmpl")
	})
	return templates, loadErr
}

// SanitizeLine collapses s to a single line and replaces square brackets,
// which the templates use as section markers.
func SanitizeLine(s string) string {
	s = strings.NewReplacer("[", "(", "]", ")").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// InstructionsBlock renders free-form user instructions as an indented list,
// capped at maxUserInstructionRunes runes in total.
func InstructionsBlock(raw string) string {
	var lines []string
	remaining := maxUserInstructionRunes

	for _, line := range strings.Split(raw, "\n") {
		line = SanitizeLine(line)
		if line == "" || remaining <= 0 {
			continue
		}
		if n := utf8.RuneCountInString(line); n > remaining {
			line = string([]rune(line)[:remaining])
		}
		remaining -= utf8.RuneCountInString(line)
		lines = append(lines, "  - "+line)
	}

	if len(lines) == 0 {
		return "  - none"
	}
	return strings.Join(lines, "\n")
}
