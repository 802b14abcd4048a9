package model

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Resume is a candidate profile the generators work with.
type Resume struct {
	ID         string         `json:"id,omitempty" mapstructure:"id"`
	Title      string         `json:"title,omitempty" mapstructure:"title"`
	FullName   string         `json:"full_name,omitempty" mapstructure:"full_name"`
	Summary    string         `json:"summary,omitempty" mapstructure:"summary"`
	Skills     []string       `json:"skills,omitempty" mapstructure:"skills"`
	Experience []Experience   `json:"experience,omitempty" mapstructure:"experience"`
	Education  []Education    `json:"education,omitempty" mapstructure:"education"`
	Languages  []string       `json:"languages,omitempty" mapstructure:"languages"`
	Text       string         `json:"text,omitempty" mapstructure:"text"`
	Raw        map[string]any `json:"raw,omitempty" mapstructure:"raw"`
}

type Experience struct {
	Company     string `json:"company,omitempty" mapstructure:"company"`
	Position    string `json:"position,omitempty" mapstructure:"position"`
	Start       string `json:"start,omitempty" mapstructure:"start"`
	End         string `json:"end,omitempty" mapstructure:"end"`
	Description string `json:"description,omitempty" mapstructure:"description"`
}

type Education struct {
	Institution string `json:"institution,omitempty" mapstructure:"institution"`
	Degree      string `json:"degree,omitempty" mapstructure:"degree"`
	Year        string `json:"year,omitempty" mapstructure:"year"`
}

// Vacancy is a job posting.
type Vacancy struct {
	ID               string         `json:"id,omitempty" mapstructure:"id"`
	Title            string         `json:"title,omitempty" mapstructure:"title"`
	Company          string         `json:"company,omitempty" mapstructure:"company"`
	Location         string         `json:"location,omitempty" mapstructure:"location"`
	Description      string         `json:"description,omitempty" mapstructure:"description"`
	Requirements     []string       `json:"requirements,omitempty" mapstructure:"requirements"`
	Responsibilities []string       `json:"responsibilities,omitempty" mapstructure:"responsibilities"`
	KeySkills        []string       `json:"key_skills,omitempty" mapstructure:"key_skills"`
	Salary           string         `json:"salary,omitempty" mapstructure:"salary"`
	URL              string         `json:"url,omitempty" mapstructure:"url"`
	Raw              map[string]any `json:"raw,omitempty" mapstructure:"raw"`
}

var (
	ErrEmptyResume  = errors.New("resume has no content")
	ErrEmptyVacancy = errors.New("vacancy has no title or description")
)

// Validate reports whether the resume carries anything a generator can use.
func (r *Resume) Validate() error {
	if r == nil {
		return ErrEmptyResume
	}
	if strings.TrimSpace(r.Text) == "" && strings.TrimSpace(r.Summary) == "" &&
		len(r.Skills) == 0 && len(r.Experience) == 0 && len(r.Raw) == 0 {
		return ErrEmptyResume
	}
	return nil
}

func (v *Vacancy) Validate() error {
	if v == nil {
		return ErrEmptyVacancy
	}
	if strings.TrimSpace(v.Title) == "" && strings.TrimSpace(v.Description) == "" {
		return ErrEmptyVacancy
	}
	return nil
}

// Hash returns a stable content hash used to deduplicate stored documents.
func (r *Resume) Hash() (string, error) { return hashOf(r) }

func (v *Vacancy) Hash() (string, error) { return hashOf(v) }

// AllSkills returns the resume skills without blanks and case-insensitive duplicates.
func (r *Resume) AllSkills() []string {
	return dedupe(r.Skills)
}

func (v *Vacancy) AllSkills() []string {
	return dedupe(v.KeySkills)
}

func hashOf(v any) (string, error) {
	// encoding/json sorts map keys, so the encoding is canonical for our records.
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal for hash: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:]), nil
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}
