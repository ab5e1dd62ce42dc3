// internal/schema/validator.go
// Package schema validates user-submitted documents before they are written
// to the document store.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Document kinds accepted by Validate.
const (
	KindVideo   = "video"
	KindComment = "comment"
	KindChat    = "chat"
)

// schemas holds the JSON schema of each document kind as submitted by clients.
var schemas = map[string]string{
	KindVideo: `{"type":"object","required":["title","mediaRef"],"properties":{` +
		`"title":{"type":"string","minLength":1,"maxLength":120},` +
		`"description":{"type":"string","maxLength":2048},` +
		`"mediaRef":{"type":"string","pattern":"^(https?|s3)://"},` +
		`"category":{"type":"string","maxLength":64}}}`,
	KindComment: `{"type":"object","required":["text"],"properties":{"text":{"type":"string","maxLength":2048}}}`,
	KindChat:    `{"type":"object","required":["text"],"properties":{"text":{"type":"string","maxLength":1024}}}`,
}

// Validator validates documents against JSON schemas.
type Validator struct {
	schemas map[string]*gojsonschema.Schema // Compiled schema per kind
}

// NewValidator compiles every document schema.
func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(schemas))}
	for kind, src := range schemas {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", kind, err)
		}
		v.schemas[kind] = s
	}
	return v, nil
}

// Validate checks doc against the schema for kind. Any value that encodes
// to JSON is accepted, including request structs.
func (v *Validator) Validate(kind string, doc interface{}) error {
	s, ok := v.schemas[kind]
	if !ok {
		return fmt.Errorf("unsupported document kind: %s", kind)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
