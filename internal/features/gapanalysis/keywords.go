package gapanalysis

import (
	"math"
	"strings"

	"github.com/spigell/hh-artifacts/internal/model"
)

// KeywordMatch is the result of the local skill overlap pass.
type KeywordMatch struct {
	Score    float64
	Matching []string
	Missing  []string
}

// MatchKeywords compares the vacancy key skills with the resume. A skill matches
// when it is listed in the resume skills or mentioned anywhere in its text.
func MatchKeywords(resume *model.Resume, vacancy *model.Vacancy) KeywordMatch {
	required := vacancy.AllSkills()
	m := KeywordMatch{Matching: []string{}, Missing: []string{}}
	if len(required) == 0 {
		return m
	}

	have := make(map[string]struct{})
	for _, s := range resume.AllSkills() {
		have[strings.ToLower(s)] = struct{}{}
	}
	corpus := resumeText(resume)

	for _, skill := range required {
		key := strings.ToLower(skill)
		if _, ok := have[key]; ok || containsWord(corpus, key) {
			m.Matching = append(m.Matching, skill)
			continue
		}
		m.Missing = append(m.Missing, skill)
	}

	m.Score = math.Round(float64(len(m.Matching))/float64(len(required))*100) / 100
	return m
}

func resumeText(r *model.Resume) string {
	parts := []string{r.Title, r.Summary, r.Text}
	for _, e := range r.Experience {
		parts = append(parts, e.Position, e.Description)
	}
	return strings.ToLower(strings.Join(parts, "\n"))
}

// containsWord reports whether word occurs in text delimited by non-alphanumerics,
// so "go" does not match "google" but "c++" matches "c++".
func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		if (idx == 0 || !isWordByte(text[idx-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = idx + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 0x80
}
