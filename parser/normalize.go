package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aluiziolira/amiami-scraper/models"
)

type coercion int

const (
	keep coercion = iota
	toBool
	toDate
	toString
	toOptString
	toIntList
)

// field renames an upstream key and coerces its value.
type field struct {
	from     string
	to       string
	coerce   coercion
	required bool
}

// merge concatenates several upstream int lists into one target key.
type merge struct {
	to   string
	from []string
}

// schema is a declarative rename/coerce table for one upstream record shape.
// Keys that are neither mapped, merged nor listed as passthrough are rejected.
type schema struct {
	name        string
	fields      []field
	merges      []merge
	known       map[string]struct{}
	passthrough map[string]struct{}
}

func newSchema(name string, fields []field, merges []merge, passthrough ...string) *schema {
	s := &schema{
		name:        name,
		fields:      fields,
		merges:      merges,
		known:       make(map[string]struct{}, len(fields)),
		passthrough: make(map[string]struct{}, len(passthrough)),
	}
	for _, f := range fields {
		s.known[f.from] = struct{}{}
	}
	for _, m := range merges {
		for _, k := range m.from {
			s.known[k] = struct{}{}
		}
	}
	for _, k := range passthrough {
		s.passthrough[k] = struct{}{}
	}
	return s
}

// apply returns the renamed/coerced view of src plus the opaque passthrough values.
func (s *schema) apply(src map[string]any) (map[string]any, map[string]any, error) {
	extra := make(map[string]any)
	for k, v := range src {
		if _, ok := s.known[k]; ok {
			continue
		}
		if _, ok := s.passthrough[k]; ok {
			extra[k] = v
			continue
		}
		return nil, nil, fmt.Errorf("%s: unknown field %q", s.name, k)
	}

	out := make(map[string]any, len(s.fields)+len(s.merges))
	for _, f := range s.fields {
		v, ok := src[f.from]
		if !ok {
			if f.required {
				return nil, nil, fmt.Errorf("%s: missing field %q", s.name, f.from)
			}
			continue
		}
		cv, err := coerce(f.coerce, v)
		if err != nil {
			return nil, nil, fmt.Errorf("%s.%s: %w", s.name, f.from, err)
		}
		out[f.to] = cv
	}

	for _, m := range s.merges {
		merged := make([]any, 0)
		for _, k := range m.from {
			list, err := coerce(toIntList, src[k])
			if err != nil {
				return nil, nil, fmt.Errorf("%s.%s: %w", s.name, k, err)
			}
			merged = append(merged, list.([]any)...)
		}
		out[m.to] = merged
	}
	return out, extra, nil
}

func coerce(c coercion, v any) (any, error) {
	switch c {
	case toBool:
		return asBool(v)
	case toDate:
		s, ok := v.(string)
		if v == nil || (ok && s == "") {
			return nil, nil
		}
		if !ok {
			return nil, fmt.Errorf("date must be a string, got %T", v)
		}
		d, err := models.ParseDate(s)
		if err != nil {
			return nil, err
		}
		return d, nil
	case toString:
		if v == nil {
			return "", nil
		}
		return asString(v)
	case toOptString:
		if v == nil {
			return nil, nil
		}
		return asString(v)
	case toIntList:
		if v == nil {
			return []any{}, nil
		}
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list, got %T", v)
		}
		for _, el := range list {
			if _, ok := el.(json.Number); !ok {
				return nil, fmt.Errorf("expected integers, got %T", el)
			}
		}
		return list, nil
	default:
		return v, nil
	}
}

// asBool mirrors the upstream convention of 0/1 integer flags.
func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return false, fmt.Errorf("invalid flag %q", t.String())
		}
		return f != 0, nil
	case string:
		return t != "", nil
	default:
		return false, fmt.Errorf("cannot read %T as a flag", v)
	}
}

func asString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	default:
		return "", fmt.Errorf("expected a string, got %T", v)
	}
}

// decodeObject parses a JSON object keeping numbers as json.Number.
func decodeObject(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return out, nil
}

// decodeRecord applies s to src and decodes the result into T.
func decodeRecord[T any](s *schema, src map[string]any) (T, map[string]any, error) {
	var rec T
	mapped, extra, err := s.apply(src)
	if err != nil {
		return rec, nil, err
	}
	b, err := json.Marshal(mapped)
	if err != nil {
		return rec, nil, fmt.Errorf("%s: %w", s.name, err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return rec, nil, fmt.Errorf("%s: %w", s.name, err)
	}
	return rec, extra, nil
}

// decodeList decodes every element of a JSON array through s.
func decodeList[T any](s *schema, raw any) ([]T, error) {
	if raw == nil {
		return []T{}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected a list, got %T", s.name, raw)
	}
	out := make([]T, 0, len(list))
	for i, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: expected an object, got %T", s.name, i, el)
		}
		rec, _, err := decodeRecord[T](s, obj)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", s.name, i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
