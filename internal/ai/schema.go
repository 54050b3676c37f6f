package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldType enumerates the value kinds a schema field accepts.
type FieldType string

const (
	FieldNumber  FieldType = "number"
	FieldInteger FieldType = "integer"
	FieldString  FieldType = "string"
	FieldEnum    FieldType = "enum"
)

// Field declares one key of the expected JSON object.
type Field struct {
	Name        string
	Type        FieldType
	Min         float64
	Max         float64
	Enum        []string
	Required    bool
	Description string
}

// Schema is the declared output shape of a reasoning call.
type Schema struct {
	Name   string
	Fields []Field
}

// Instructions renders the schema as a system prompt suffix.
func (s Schema) Instructions() string {
	b := &strings.Builder{}
	b.WriteString("Reply with a strict JSON object and nothing else. Keys:\n")
	for _, f := range s.Fields {
		fmt.Fprintf(b, "- %s (%s", f.Name, f.Type)
		switch f.Type {
		case FieldNumber, FieldInteger:
			fmt.Fprintf(b, " between %g and %g", f.Min, f.Max)
		case FieldEnum:
			fmt.Fprintf(b, " one of %s", strings.Join(f.Enum, ", "))
		}
		if f.Required {
			b.WriteString(", required")
		}
		b.WriteString(")")
		if f.Description != "" {
			b.WriteString(": " + f.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Decode parses model output and validates it. Every violation wraps ErrMalformed.
func (s Schema) Decode(content string) (Response, error) {
	content = normalizeJSONBlock(content)
	if content == "" {
		return Response{}, fmt.Errorf("%w: empty content", ErrMalformed)
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Response{}, fmt.Errorf("%w: parse json: %v", ErrMalformed, err)
	}
	return s.Validate(raw)
}

// Validate checks raw against the schema and returns the normalized values.
func (s Schema) Validate(raw map[string]any) (Response, error) {
	values := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		v, ok := raw[f.Name]
		if !ok || v == nil {
			if f.Required {
				return Response{}, fmt.Errorf("%w: %s: missing field %q", ErrMalformed, s.Name, f.Name)
			}
			continue
		}
		normalized, err := f.coerce(v)
		if err != nil {
			return Response{}, fmt.Errorf("%w: %s: field %q: %v", ErrMalformed, s.Name, f.Name, err)
		}
		values[f.Name] = normalized
	}
	return Response{Values: values}, nil
}

func (f Field) coerce(v any) (any, error) {
	switch f.Type {
	case FieldNumber, FieldInteger:
		n, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if f.Type == FieldInteger && n != math.Trunc(n) {
			return nil, fmt.Errorf("%g is not an integer", n)
		}
		if n < f.Min || n > f.Max {
			return nil, fmt.Errorf("%g outside [%g, %g]", n, f.Min, f.Max)
		}
		return n, nil
	case FieldEnum:
		text, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		for _, allowed := range f.Enum {
			if strings.EqualFold(strings.TrimSpace(text), allowed) {
				return allowed, nil
			}
		}
		return nil, fmt.Errorf("%q not in %v", text, f.Enum)
	default:
		text, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		text = strings.TrimSpace(text)
		if f.Required && text == "" {
			return nil, fmt.Errorf("empty")
		}
		return text, nil
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("not a finite number")
		}
		return n, nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", n)
		}
		if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return 0, fmt.Errorf("not a finite number: %q", n)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func normalizeJSONBlock(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.IndexRune(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	trimmed = strings.TrimSpace(trimmed)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end >= start {
		return strings.TrimSpace(trimmed[start : end+1])
	}
	return trimmed
}
