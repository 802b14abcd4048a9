package headhunter

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(nil, "token")
	c.APIURL = srv.URL
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestGetVacancy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vacancies/42" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Fatalf("unexpected authorization header %q", got)
		}

		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		_ = json.NewEncoder(gz).Encode(map[string]any{
			"id":            "42",
			"name":          " Go Developer ",
			"area":          map[string]any{"name": "Moscow"},
			"salary":        map[string]any{"from": 200000, "currency": "RUR"},
			"employer":      map[string]any{"id": "7", "name": "Acme"},
			"alternate_url": "https://hh.ru/vacancy/42",
			"description":   "<p>We build <b>fast</b> services &amp; tools.</p><ul><li>Go</li><li>SQL</li></ul>",
			"key_skills":    []map[string]any{{"name": "Go"}, {"name": " "}, {"name": "PostgreSQL"}},
			"experience":    map[string]any{"name": "3-6 years"},
		})
	})

	v, err := c.GetVacancy(context.Background(), "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := v.ToModel()
	if got.Title != "Go Developer" || got.Company != "Acme" || got.Location != "Moscow" {
		t.Fatalf("unexpected vacancy: %+v", got)
	}
	if got.Description != "We build fast services & tools.\n\nGo\n\nSQL" {
		t.Fatalf("unexpected description %q", got.Description)
	}
	if got.Salary != "from 200000 RUR" {
		t.Fatalf("unexpected salary %q", got.Salary)
	}
	if len(got.KeySkills) != 2 || got.KeySkills[1] != "PostgreSQL" {
		t.Fatalf("unexpected key skills %v", got.KeySkills)
	}
	if len(got.Requirements) != 1 || got.Requirements[0] != "Experience: 3-6 years" {
		t.Fatalf("unexpected requirements %v", got.Requirements)
	}
}

func TestGetVacancyStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusForbidden, want: ErrUnauthorized},
		{name: "not found", status: http.StatusNotFound, want: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := c.GetVacancy(context.Background(), "1")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := New(nil, "").GetVacancy(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestGetResumeDetails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/resumes/abc" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		writeJSON(t, w, map[string]any{
			"id":         "abc",
			"title":      "Backend engineer",
			"first_name": "Jane",
			"last_name":  "Doe",
			"skills":     "<p>Distributed systems</p>",
			"skill_set":  []string{"Go", "Kubernetes"},
			"experience": []map[string]any{{
				"company":     "Acme",
				"position":    "Engineer",
				"start":       "2020-01-01",
				"description": "Built <i>things</i>",
			}},
			"education": map[string]any{"primary": []map[string]any{{"name": "MSU", "organization": "CS", "year": 2015}}},
			"language":  []map[string]any{{"name": "English", "level": map[string]any{"name": "C1"}}},
		})
	})

	details, err := c.GetResumeDetails(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.Raw["id"] != "abc" {
		t.Fatalf("expected raw payload to be kept, got %v", details.Raw)
	}

	got := details.ToModel()
	if got.FullName != "Jane Doe" || got.Summary != "Distributed systems" {
		t.Fatalf("unexpected resume: %+v", got)
	}
	if len(got.Skills) != 2 || len(got.Experience) != 1 || got.Experience[0].Description != "Built things" {
		t.Fatalf("unexpected resume details: %+v", got)
	}
	if len(got.Education) != 1 || got.Education[0].Year != "2015" {
		t.Fatalf("unexpected education: %+v", got.Education)
	}
	if len(got.Languages) != 1 || got.Languages[0] != "English (C1)" {
		t.Fatalf("unexpected languages: %v", got.Languages)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("converted resume must be valid: %v", err)
	}
}

func TestGetMineResumesFollowsPages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		writeJSON(t, w, map[string]any{
			"items": []map[string]any{{"id": strconv.Itoa(page), "title": "Resume " + strconv.Itoa(page)}},
			"pages": 3,
			"page":  page,
		})
	})

	resumes, err := c.GetMineResumes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resumes.Len() != 3 {
		t.Fatalf("expected 3 resumes, got %d", resumes.Len())
	}
	if r := resumes.FindByTitle("Resume 2"); r == nil || r.ID != "2" {
		t.Fatalf("unexpected lookup result: %+v", r)
	}
	if titles := resumes.Titles(); titles[0] != "Resume 0" {
		t.Fatalf("unexpected titles: %v", titles)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "", want: ""},
		{in: "plain", want: "plain"},
		{in: "a<br/>b", want: "a\nb"},
		{in: "<strong>5&nbsp;years</strong>", want: "5 years"},
	}
	for _, tt := range tests {
		if got := stripHTML(tt.in); got != tt.want {
			t.Fatalf("stripHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
