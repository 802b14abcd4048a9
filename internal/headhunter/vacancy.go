package headhunter

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/spigell/hh-artifacts/internal/model"
)

var (
	blockTags  = regexp.MustCompile(`(?i)</?(p|br|li|ul|ol|div|h[1-6])\s*/?>`)
	anyTag     = regexp.MustCompile(`<[^>]*>`)
	blankLines = regexp.MustCompile(`\n\s*\n+`)
	spaces     = regexp.MustCompile(`[ \t\x{00A0}]+`)
)

type Vacancy struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Area struct {
		Name string `json:"name,omitempty"`
	} `json:"area,omitempty"`
	Salary *struct {
		From     int    `json:"from,omitempty"`
		To       int    `json:"to,omitempty"`
		Currency string `json:"currency,omitempty"`
		Gross    bool   `json:"gross,omitempty"`
	} `json:"salary,omitempty"`
	Experience struct {
		Name string `json:"name,omitempty"`
	} `json:"experience,omitempty"`
	Schedule struct {
		Name string `json:"name,omitempty"`
	} `json:"schedule,omitempty"`
	Employer struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"employer,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	Description  string `json:"description,omitempty"`
	KeySkills    []struct {
		Name string `json:"name,omitempty"`
	} `json:"key_skills,omitempty"`
	Snippet struct {
		Requirement    string `json:"requirement,omitempty"`
		Responsibility string `json:"responsibility,omitempty"`
	} `json:"snippet,omitempty"`
}

func (c *Client) GetVacancy(ctx context.Context, id string) (*Vacancy, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("vacancy id is required")
	}

	var v Vacancy
	if err := c.getJSON(ctx, fmt.Sprintf("%s/vacancies/%s", c.APIURL, url.PathEscape(id)), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ToModel converts the vacancy into the record the generators work with.
func (v *Vacancy) ToModel() *model.Vacancy {
	out := &model.Vacancy{
		ID:          v.ID,
		Title:       strings.TrimSpace(v.Name),
		Company:     v.Employer.Name,
		Location:    v.Area.Name,
		Description: stripHTML(v.Description),
		Salary:      v.salary(),
		URL:         v.AlternateURL,
	}
	for _, s := range v.KeySkills {
		if name := strings.TrimSpace(s.Name); name != "" {
			out.KeySkills = append(out.KeySkills, name)
		}
	}
	if r := stripHTML(v.Snippet.Requirement); r != "" {
		out.Requirements = append(out.Requirements, r)
	}
	if r := stripHTML(v.Snippet.Responsibility); r != "" {
		out.Responsibilities = append(out.Responsibilities, r)
	}
	if v.Experience.Name != "" {
		out.Requirements = append(out.Requirements, "Experience: "+v.Experience.Name)
	}
	if v.Schedule.Name != "" {
		out.Requirements = append(out.Requirements, "Schedule: "+v.Schedule.Name)
	}
	return out
}

func (v *Vacancy) salary() string {
	s := v.Salary
	if s == nil || (s.From == 0 && s.To == 0) {
		return ""
	}
	switch {
	case s.From > 0 && s.To > 0:
		return fmt.Sprintf("%d-%d %s", s.From, s.To, s.Currency)
	case s.From > 0:
		return fmt.Sprintf("from %d %s", s.From, s.Currency)
	default:
		return fmt.Sprintf("up to %d %s", s.To, s.Currency)
	}
}

// stripHTML turns the limited markup hh.ru uses into plain text.
func stripHTML(s string) string {
	s = blockTags.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = spaces.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
