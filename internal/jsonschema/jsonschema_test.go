package jsonschema

import "testing"

const querySchema = `{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`

func TestValidateAcceptsMatchingPayload(t *testing.T) {
	if err := Validate("query", []byte(querySchema), map[string]any{"query": "tokyo weather"}); err != nil {
		t.Fatalf("expected valid payload to pass, got %v", err)
	}
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	if err := Validate("query", []byte(querySchema), map[string]any{}); err == nil {
		t.Fatalf("expected missing required field to fail validation")
	}
}

func TestCompileIsCached(t *testing.T) {
	s1, err := Compile("query", []byte(querySchema))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s2, err := Compile("query", []byte(querySchema))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if s1 != s2 {
		t.Fatalf("expected identical schema bytes to return the cached pointer")
	}
}
