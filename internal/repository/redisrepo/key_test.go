package redisrepo

import (
	"path"
	"strings"
	"testing"

	"github.com/groblegark/auditstore/internal/model"
)

func TestCompositeKeyLayout(t *testing.T) {
	event := &model.Event{
		ID:        "e1",
		Category:  "model",
		Action:    "created",
		Actor:     "alice",
		Timestamp: "2024-01-15T10:30:00Z",
	}

	key := compositeKey(event)
	want := "id:e1|category:model|action:created|actor:alice|" +
		"action_object:|action_object_id:|target_type:|target_id:|" +
		"ts:2024-01-15T10%3A30%3A00Z"
	if key != want {
		t.Errorf("compositeKey =\n%s\nwant\n%s", key, want)
	}
}

func TestEscapeField(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a|b", "a%7Cb"},
		{"a:b", "a%3Ab"},
		{"100%", "100%25"},
		{"glob*?[]", "glob%2A%3F%5B%5D"},
		{`back\slash`, `back%5Cslash`},
	}
	for _, tt := range tests {
		if got := escapeField(tt.in); got != tt.want {
			t.Errorf("escapeField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// A field value containing delimiters must not match a pattern for a
// different field split. path.Match implements the same glob dialect
// Redis uses for MATCH.
func TestDelimiterInjectionDoesNotCrossSegments(t *testing.T) {
	event := &model.Event{
		ID:        "e1",
		Category:  "model|action:evil",
		Action:    "real",
		Timestamp: "2024-01-15T10:30:00Z",
	}
	key := compositeKey(event)

	// A search for action "evil" must not match this key.
	pattern := scanPattern(model.Filter{Action: "evil"})
	matched, err := path.Match(pattern, key)
	if err != nil {
		t.Fatalf("bad pattern %q: %v", pattern, err)
	}
	if matched {
		t.Errorf("injected delimiter leaked across segments:\nkey %s\npattern %s", key, pattern)
	}

	// The honest search still finds it.
	pattern = scanPattern(model.Filter{Category: "model|action:evil"})
	matched, err = path.Match(pattern, key)
	if err != nil {
		t.Fatalf("bad pattern %q: %v", pattern, err)
	}
	if !matched {
		t.Error("escaped pattern failed to match its own key")
	}
}

func TestScanPattern(t *testing.T) {
	t.Run("empty filter is all wildcards", func(t *testing.T) {
		pattern := scanPattern(model.Filter{})
		want := "id:*|category:*|action:*|actor:*|" +
			"action_object:*|action_object_id:*|target_type:*|target_id:*|ts:*"
		if pattern != want {
			t.Errorf("pattern = %s, want %s", pattern, want)
		}
	})

	t.Run("present fields are literal", func(t *testing.T) {
		pattern := scanPattern(model.Filter{Category: "model", Actor: "alice"})
		if !strings.Contains(pattern, "category:model|") {
			t.Errorf("category not literal: %s", pattern)
		}
		if !strings.Contains(pattern, "actor:alice|") {
			t.Errorf("actor not literal: %s", pattern)
		}
		if !strings.Contains(pattern, "action:*|") {
			t.Errorf("absent field not wildcard: %s", pattern)
		}
	})

	t.Run("pattern matches its key", func(t *testing.T) {
		event := &model.Event{
			ID:        "e1",
			Category:  "model",
			Action:    "created",
			Actor:     "alice",
			Timestamp: "2024-01-15T10:30:00Z",
		}
		key := compositeKey(event)
		pattern := scanPattern(model.Filter{Category: "model", Action: "created"})
		matched, err := path.Match(pattern, key)
		if err != nil {
			t.Fatalf("bad pattern: %v", err)
		}
		if !matched {
			t.Errorf("pattern %s does not match key %s", pattern, key)
		}
	})
}

func TestIDPattern(t *testing.T) {
	event := &model.Event{ID: "abc:123", Category: "model", Action: "created", Timestamp: "2024-01-15T10:30:00Z"}
	key := compositeKey(event)

	matched, err := path.Match(idPattern("abc:123"), key)
	if err != nil {
		t.Fatalf("bad pattern: %v", err)
	}
	if !matched {
		t.Errorf("idPattern(%q) does not match key %s", "abc:123", key)
	}

	matched, _ = path.Match(idPattern("abc"), key)
	if matched {
		t.Error("idPattern matched a prefix of the real id")
	}
}
