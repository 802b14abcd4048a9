package headhunter

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/hh-artifacts/internal/model"
)

type Resumes struct {
	Items []*Resume
}

// Resume is the short form returned by the résumé list.
type Resume struct {
	ID    string `mapstructure:"id"`
	Title string `mapstructure:"title"`
}

// ResumeDetails is a full résumé. Raw keeps the original payload.
type ResumeDetails struct {
	ID         string   `mapstructure:"id"`
	Title      string   `mapstructure:"title"`
	FirstName  string   `mapstructure:"first_name"`
	LastName   string   `mapstructure:"last_name"`
	Skills     string   `mapstructure:"skills"`
	SkillSet   []string `mapstructure:"skill_set"`
	Experience []struct {
		Company     string `mapstructure:"company"`
		Position    string `mapstructure:"position"`
		Start       string `mapstructure:"start"`
		End         string `mapstructure:"end"`
		Description string `mapstructure:"description"`
	} `mapstructure:"experience"`
	Education struct {
		Primary []struct {
			Name         string `mapstructure:"name"`
			Organization string `mapstructure:"organization"`
			Year         any    `mapstructure:"year"`
		} `mapstructure:"primary"`
	} `mapstructure:"education"`
	Language []struct {
		Name  string `mapstructure:"name"`
		Level struct {
			Name string `mapstructure:"name"`
		} `mapstructure:"level"`
	} `mapstructure:"language"`
	Raw map[string]any `mapstructure:"-"`
}

func (c *Client) getResumes(ctx context.Context, id string) (*Resumes, error) {
	items, err := c.getItems(ctx, fmt.Sprintf("%s/resumes/%s", c.APIURL, url.PathEscape(id)), nil)
	if err != nil {
		return nil, err
	}

	var resumes []*Resume
	if err := mapstructure.Decode(items, &resumes); err != nil {
		return nil, fmt.Errorf("decode resumes: %w", err)
	}

	return &Resumes{Items: resumes}, nil
}

func (r *Resumes) Len() int {
	return len(r.Items)
}

func (r *Resumes) Titles() []string {
	titles := make([]string, 0, len(r.Items))
	for _, v := range r.Items {
		titles = append(titles, v.Title)
	}
	return titles
}

func (r *Resumes) FindByTitle(title string) *Resume {
	for _, resume := range r.Items {
		if resume.Title == title {
			return resume
		}
	}
	return nil
}

func (c *Client) GetResumeDetails(ctx context.Context, id string) (*ResumeDetails, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("resume id is required")
	}

	var raw map[string]any
	if err := c.getJSON(ctx, fmt.Sprintf("%s/resumes/%s", c.APIURL, url.PathEscape(id)), nil, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = make(map[string]any)
	}

	details := &ResumeDetails{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           details,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode resume %s: %w", id, err)
	}
	details.Raw = raw

	return details, nil
}

// ToModel converts the résumé into the record the generators work with.
func (d *ResumeDetails) ToModel() *model.Resume {
	r := &model.Resume{
		ID:       d.ID,
		Title:    strings.TrimSpace(d.Title),
		FullName: strings.TrimSpace(strings.Join([]string{d.FirstName, d.LastName}, " ")),
		Summary:  stripHTML(d.Skills),
		Skills:   d.SkillSet,
		Raw:      d.Raw,
	}

	for _, e := range d.Experience {
		r.Experience = append(r.Experience, model.Experience{
			Company:     e.Company,
			Position:    e.Position,
			Start:       e.Start,
			End:         e.End,
			Description: stripHTML(e.Description),
		})
	}
	for _, e := range d.Education.Primary {
		year := ""
		if e.Year != nil {
			year = fmt.Sprintf("%v", e.Year)
		}
		r.Education = append(r.Education, model.Education{
			Institution: e.Name,
			Degree:      e.Organization,
			Year:        year,
		})
	}
	for _, l := range d.Language {
		lang := l.Name
		if l.Level.Name != "" {
			lang = fmt.Sprintf("%s (%s)", l.Name, l.Level.Name)
		}
		r.Languages = append(r.Languages, lang)
	}

	return r
}
