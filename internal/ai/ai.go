package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Request is a single structured-output call to an LLM provider.
type Request struct {
	// System is the system instruction. Optional.
	System string
	Prompt string
	// Schema describes the expected JSON response. Optional.
	Schema *Schema
	// Model overrides the provider default model when set.
	Model           string
	Temperature     *float32
	MaxOutputTokens int32
}

// Client is implemented by LLM providers returning raw JSON text.
type Client interface {
	GenerateJSON(ctx context.Context, req Request) (string, error)
	Provider() string
}

// Type is a JSON schema type.
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
)

// Schema is a provider-neutral subset of JSON schema.
type Schema struct {
	Type        Type
	Description string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
	Enum        []string
}

func Object(required []string, props map[string]*Schema) *Schema {
	return &Schema{Type: TypeObject, Properties: props, Required: required}
}

func ArrayOf(items *Schema) *Schema { return &Schema{Type: TypeArray, Items: items} }

func String(description string) *Schema {
	return &Schema{Type: TypeString, Description: description}
}

func Number(description string) *Schema {
	return &Schema{Type: TypeNumber, Description: description}
}

func Boolean(description string) *Schema {
	return &Schema{Type: TypeBoolean, Description: description}
}

func Enum(description string, values ...string) *Schema {
	return &Schema{Type: TypeString, Description: description, Enum: values}
}

var ErrEmptyResponse = errors.New("llm returned empty response")

// DecodeJSON extracts a JSON document from a model response, tolerating
// markdown code fences, and unmarshals it into target.
func DecodeJSON(raw string, target any) error {
	cleaned := ExtractJSON(raw)
	if cleaned == "" {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return fmt.Errorf("parse llm response: %w", err)
	}
	return nil
}

// ExtractJSON strips code fences and any prose around the outermost JSON object.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start > 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}
