package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-artifacts/internal/model"
	"github.com/spigell/hh-artifacts/internal/pdftext"
)

// inputFlags are the record sources shared by generate and session import.
type inputFlags struct {
	resumeFile  string
	vacancyFile string
	hhResume    string
	hhVacancy   string
}

func (f inputFlags) fromHH() bool {
	return f.hhResume != "" || f.hhVacancy != ""
}

// loadRecords reads the résumé and vacancy from files or hh.ru.
func loadRecords(ctx context.Context, f inputFlags, config *Config, logger *zap.Logger) (*model.Resume, *model.Vacancy, error) {
	var (
		resume  *model.Resume
		vacancy *model.Vacancy
		err     error
	)

	if f.fromHH() {
		hh, err := newHeadhunter(config, logger)
		if err != nil {
			return nil, nil, err
		}
		if f.hhResume != "" {
			details, err := hh.GetResumeDetails(ctx, f.hhResume)
			if err != nil {
				return nil, nil, fmt.Errorf("fetch resume %s: %w", f.hhResume, err)
			}
			resume = details.ToModel()
		}
		if f.hhVacancy != "" {
			v, err := hh.GetVacancy(ctx, f.hhVacancy)
			if err != nil {
				return nil, nil, fmt.Errorf("fetch vacancy %s: %w", f.hhVacancy, err)
			}
			vacancy = v.ToModel()
		}
	}

	if resume == nil && f.resumeFile != "" {
		if resume, err = readResume(ctx, f.resumeFile); err != nil {
			return nil, nil, err
		}
	}
	if vacancy == nil && f.vacancyFile != "" {
		if vacancy, err = readVacancy(f.vacancyFile); err != nil {
			return nil, nil, err
		}
	}

	return resume, vacancy, nil
}

// readResume accepts JSON, PDF or plain text.
func readResume(ctx context.Context, path string) (*model.Resume, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume: %w", err)
	}

	switch {
	case isJSON(path, data):
		var r model.Resume
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode resume %s: %w", path, err)
		}
		return &r, nil
	case bytes.HasPrefix(data, []byte("%PDF-")):
		text, err := pdftext.New().Extract(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("extract resume text: %w", err)
		}
		return &model.Resume{Text: text}, nil
	default:
		return &model.Resume{Text: strings.TrimSpace(string(data))}, nil
	}
}

// readVacancy accepts JSON or plain text. The first line of a text file is the title.
func readVacancy(path string) (*model.Vacancy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vacancy: %w", err)
	}

	if isJSON(path, data) {
		var v model.Vacancy
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode vacancy %s: %w", path, err)
		}
		return &v, nil
	}

	text := strings.TrimSpace(string(data))
	title, rest, _ := strings.Cut(text, "\n")
	return &model.Vacancy{Title: strings.TrimSpace(title), Description: strings.TrimSpace(rest)}, nil
}

func isJSON(path string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return true
	}
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// readOptions merges an options file (YAML or JSON) with key=value pairs.
// Pairs win on collision.
func readOptions(path string, pairs map[string]string) (map[string]any, error) {
	opts := make(map[string]any)

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read options file: %w", err)
		}
		for k, val := range v.AllSettings() {
			opts[k] = val
		}
	}

	for k, val := range pairs {
		opts[k] = val
	}
	return opts, nil
}
