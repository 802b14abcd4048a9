package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/hh-artifacts/internal/ai/aitest"
	"github.com/spigell/hh-artifacts/internal/dispatch"
	"github.com/spigell/hh-artifacts/internal/feature"
	"github.com/spigell/hh-artifacts/internal/features"
	"github.com/spigell/hh-artifacts/internal/metrics"
	"github.com/spigell/hh-artifacts/internal/model"
	"github.com/spigell/hh-artifacts/internal/pdftext"
	"github.com/spigell/hh-artifacts/internal/report"
	"github.com/spigell/hh-artifacts/internal/session"
	"github.com/spigell/hh-artifacts/internal/store/sqlite"
)

type letter struct {
	Body string `json:"body"`
}

func (l *letter) Format() string { return l.Body }

func (l *letter) Document() report.Document {
	return report.Document{Title: "Letter", Sections: []report.Section{{Paragraphs: []string{l.Body}}}}
}

type letterGenerator struct {
	version string
	err     error
}

func (g *letterGenerator) Generate(_ context.Context, r *model.Resume, v *model.Vacancy, opts feature.Options) (feature.Result, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &letter{Body: strings.Join([]string{g.version, r.FullName, v.Title, opts.Tone}, "|")}, nil
}

func (g *letterGenerator) FeatureName() string { return "cover_letter" }

func (g *letterGenerator) SupportedVersions() []string { return []string{g.version} }

type stubExtractor struct {
	text string
	err  error
}

func (e stubExtractor) Extract(context.Context, []byte) (string, error) { return e.text, e.err }

func newTestServer(t *testing.T, extractor Extractor) *httptest.Server {
	t.Helper()

	reg := feature.NewRegistry()
	for _, v := range []string{"v1", "v2"} {
		gen := &letterGenerator{version: v}
		require.NoError(t, reg.Register("cover_letter", func(feature.Config) (feature.Generator, error) { return gen, nil },
			feature.WithVersion(v), feature.WithDescription("Cover letter")))
	}
	require.NoError(t, reg.Register("broken", func(feature.Config) (feature.Generator, error) {
		return nil, errors.New("api key missing")
	}))
	require.NoError(t, reg.Register("failing", func(feature.Config) (feature.Generator, error) {
		return &letterGenerator{version: "v1", err: errors.New("upstream 503")}, nil
	}))

	st, err := sqlite.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	sessions := session.NewManager(st)

	promReg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSink(promReg)
	require.NoError(t, err)

	svc := dispatch.New(reg, dispatch.WithSessions(sessions), dispatch.WithMetrics(sink))

	srv := httptest.NewServer(NewRouter(Deps{
		Dispatcher: svc,
		Sessions:   sessions,
		Renderer:   report.NewRenderer(report.Config{}),
		Extractor:  extractor,
		Gatherer:   promReg,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any, headers ...string) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

var inline = map[string]any{
	"resume":  map[string]any{"full_name": "Jane", "summary": "Go developer"},
	"vacancy": map[string]any{"title": "Backend"},
	"options": map[string]any{"tone": "formal"},
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	postJSON(t, srv.URL+"/api/v1/features/cover_letter", inline)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), `hh_artifacts_generations_total{feature="cover_letter",outcome="success",version="v1"} 1`)
}

func TestListFeatures(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/v1/features")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[struct {
		Features []dispatch.Listing `json:"features"`
	}](t, resp)
	require.Len(t, body.Features, 3)
	assert.Equal(t, dispatch.Listing{
		Name:           "cover_letter",
		Description:    "Cover letter",
		Versions:       []string{"v1", "v2"},
		DefaultVersion: "v1",
	}, body.Features[1])
}

func TestGenerate(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("default version", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/v1/features/cover_letter", inline)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		env := decodeBody[dispatch.Envelope](t, resp)
		assert.Equal(t, "cover_letter", env.FeatureName)
		assert.Equal(t, "v1", env.Version)
		assert.Equal(t, "v1|Jane|Backend|formal", env.Result["body"])
		assert.Equal(t, "v1|Jane|Backend|formal", env.FormattedOutput)
	})

	t.Run("query version wins over body", func(t *testing.T) {
		body := map[string]any{"version": "v1", "resume": inline["resume"], "vacancy": inline["vacancy"]}
		resp := postJSON(t, srv.URL+"/api/v1/features/cover_letter?version=v2", body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "v2", decodeBody[dispatch.Envelope](t, resp).Version)
	})
}

func TestGenerateErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantKind   string
		wantDetail string
	}{
		{
			name:       "unknown feature",
			path:       "/api/v1/features/nope",
			body:       inline,
			wantStatus: http.StatusNotFound,
			wantKind:   KindNotFound,
			wantDetail: `feature "nope" is not registered`,
		},
		{
			name:       "unknown version",
			path:       "/api/v1/features/cover_letter?version=v9",
			body:       inline,
			wantStatus: http.StatusNotFound,
			wantKind:   KindNotFound,
			wantDetail: `feature "cover_letter" has no version "v9"`,
		},
		{
			name:       "construction failure",
			path:       "/api/v1/features/broken",
			body:       inline,
			wantStatus: http.StatusInternalServerError,
			wantKind:   KindRegistration,
		},
		{
			name:       "generation failure",
			path:       "/api/v1/features/failing",
			body:       inline,
			wantStatus: http.StatusInternalServerError,
			wantKind:   KindGeneration,
			wantDetail: `feature "failing" failed: upstream 503`,
		},
		{
			name:       "missing data",
			path:       "/api/v1/features/cover_letter",
			body:       map[string]any{"resume": inline["resume"]},
			wantStatus: http.StatusBadRequest,
			wantKind:   KindBadRequest,
		},
		{
			name:       "invalid options",
			path:       "/api/v1/features/cover_letter",
			body:       map[string]any{"resume": inline["resume"], "vacancy": inline["vacancy"], "options": map[string]any{"max_words": -5}},
			wantStatus: http.StatusBadRequest,
			wantKind:   KindBadRequest,
		},
		{
			name:       "unknown body field",
			path:       "/api/v1/features/cover_letter",
			body:       map[string]any{"resumee": 1},
			wantStatus: http.StatusBadRequest,
			wantKind:   KindBadRequest,
		},
		{
			name:       "unknown session",
			path:       "/api/v1/features/cover_letter",
			body:       map[string]any{"session_id": "nope"},
			wantStatus: http.StatusNotFound,
			wantKind:   KindSessionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body := decodeBody[ErrorBody](t, resp)
			assert.Equal(t, tt.wantKind, body.Kind)
			assert.NotEmpty(t, body.FeatureName)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, body.Detail)
			}
		})
	}
}

func TestGenerateRejectedByGenerator(t *testing.T) {
	reg := feature.NewRegistry()
	client := aitest.New(`{"subject":"Hi","greeting":"Hello","paragraphs":[],"key_points":[],"closing":"Bye"}`)
	require.NoError(t, features.RegisterAll(reg, client, nil, nil))

	srv := httptest.NewServer(NewRouter(Deps{Dispatcher: dispatch.New(reg)}))
	t.Cleanup(srv.Close)

	skills := make([]string, 11)
	for i := range skills {
		skills[i] = "skill" + string(rune('a'+i))
	}

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantKind   string
	}{
		{
			name:       "empty inline resume",
			body:       map[string]any{"resume": map[string]any{}, "vacancy": inline["vacancy"]},
			wantStatus: http.StatusBadRequest,
			wantKind:   KindBadRequest,
		},
		{
			name:       "empty inline vacancy",
			body:       map[string]any{"resume": inline["resume"], "vacancy": map[string]any{"company": "Acme"}},
			wantStatus: http.StatusBadRequest,
			wantKind:   KindBadRequest,
		},
		{
			name: "too many highlighted skills",
			body: map[string]any{
				"resume":  inline["resume"],
				"vacancy": inline["vacancy"],
				"options": map[string]any{"highlight_skills": skills},
			},
			wantStatus: http.StatusBadRequest,
			wantKind:   KindBadRequest,
		},
		{
			name:       "empty generated letter",
			body:       inline,
			wantStatus: http.StatusInternalServerError,
			wantKind:   KindGeneration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/v1/features/cover_letter", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body := decodeBody[ErrorBody](t, resp)
			assert.Equal(t, tt.wantKind, body.Kind)
			assert.Equal(t, "cover_letter", body.FeatureName)
		})
	}

	assert.Len(t, client.Requests(), 1)
}

func TestSessionsFlow(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/api/v1/sessions", map[string]any{
		"resume":  inline["resume"],
		"vacancy": inline["vacancy"],
	}, HeaderUserID, "alice", HeaderOrgID, "acme")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[sessionResponse](t, resp)
	require.NotEmpty(t, created.SessionID)

	resp = postJSON(t, srv.URL+"/api/v1/features/cover_letter", map[string]any{"session_id": created.SessionID},
		HeaderUserID, "alice", HeaderOrgID, "acme")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "v1|Jane|Backend|", decodeBody[dispatch.Envelope](t, resp).Result["body"])

	t.Run("other identity", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/v1/features/cover_letter", map[string]any{"session_id": created.SessionID})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, KindSessionNotFound, decodeBody[ErrorBody](t, resp).Kind)
	})

	t.Run("get", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/sessions/"+created.SessionID, nil)
		require.NoError(t, err)
		req.Header.Set(HeaderUserID, "alice")
		req.Header.Set(HeaderOrgID, "acme")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decodeBody[sessionResponse](t, resp)
		require.NotNil(t, got.Resume)
		assert.Equal(t, "Jane", got.Resume.FullName)
	})

	t.Run("invalid body", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/v1/sessions", map[string]any{"resume": map[string]any{}, "vacancy": inline["vacancy"]})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGenerateReport(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/api/v1/features/cover_letter/report", inline)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "cover_letter-v1.pdf")

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func uploadPDF(t *testing.T, url string, data []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "resume.pdf")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestExtractResume(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		srv := newTestServer(t, stubExtractor{text: "Jane Doe"})
		resp := uploadPDF(t, srv.URL+"/api/v1/resumes/extract", []byte("%PDF-1.4"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Jane Doe", decodeBody[map[string]string](t, resp)["text"])
	})

	t.Run("tool missing", func(t *testing.T) {
		srv := newTestServer(t, stubExtractor{err: pdftext.ErrToolNotFound})
		resp := uploadPDF(t, srv.URL+"/api/v1/resumes/extract", []byte("%PDF-1.4"))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("not configured", func(t *testing.T) {
		srv := newTestServer(t, nil)
		resp := uploadPDF(t, srv.URL+"/api/v1/resumes/extract", []byte("%PDF-1.4"))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, KindUnavailable, decodeBody[ErrorBody](t, resp).Kind)
	})
}

func TestServerGracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(Config{ShutdownTimeout: time.Second}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.NoError(t, s.Shutdown(context.Background()))
}
