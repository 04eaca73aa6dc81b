package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateCleanSurvey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.yaml")
	raw := `
id: onboarding
title: Onboarding
questions:
  - id: name
    type: short_text
    prompt: What's your name?
    required: true
  - id: greeting
    type: long_text
    prompt: "Nice to meet you, {{name}}!"
    logic:
      rules:
        - id: wait
          condition:
            questionId: name
            operator: is_empty
          action:
            type: hide
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write survey: %v", err)
	}

	var out bytes.Buffer
	if err := runValidate(&out, path); err != nil {
		t.Fatalf("validate: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "ok: 2 questions") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestValidateBrokenSurvey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.json")
	raw := `{
  "id": "broken",
  "questions": [
    {"id": "q1", "type": "short_text", "prompt": "?"},
    {"id": "q2", "type": "short_text", "prompt": "?",
     "logic": {"rules": [
       {"id": "r1",
        "condition": {"questionId": "q2", "operator": "is_empty"},
        "action": {"type": "hide"}}
     ]}}
  ]
}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write survey: %v", err)
	}

	var out bytes.Buffer
	if err := runValidate(&out, path); err == nil {
		t.Fatalf("expected error, output %q", out.String())
	}
	if !strings.Contains(out.String(), "self_reference") {
		t.Fatalf("output = %q", out.String())
	}
}
