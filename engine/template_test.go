package engine

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	vars := map[string]any{
		"name":    "John",
		"chat_id": int64(42),
		"user": map[string]any{
			"email": "john@example.com",
		},
	}

	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{"no placeholders", "plain text", "plain text"},
		{"single variable", "Hello {{ name }}", "Hello John"},
		{"two placeholders", "{{ name }} in chat {{ chat_id }}", "John in chat 42"},
		{"nested access", "mail: {{ user.email }}", "mail: john@example.com"},
		{"arithmetic", "{{ 1 + 2 }}", "3"},
		{"missing variable renders empty", "x{{ missing }}y", "xy"},
		{"adjacent placeholders", "{{ name }}{{ name }}", "JohnJohn"},
	}

	renderer, err := NewRenderer(16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderer.Render(tt.src, vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRenderLeavesNoMarkers(t *testing.T) {
	renderer, err := NewRenderer(16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := renderer.Render("a {{ x }} b {{ y }} c", map[string]any{"x": 1, "y": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, "{{") || strings.Contains(got, "}}") {
		t.Errorf("rendered output still contains markers: %q", got)
	}
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unclosed placeholder", "Hello {{ name"},
		{"empty placeholder", "Hello {{ }}"},
		{"invalid expression", "Hello {{ 1 + }}"},
	}

	renderer, err := NewRenderer(16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := renderer.Render(tt.src, map[string]any{})
			if err == nil {
				t.Fatal("expected an error")
			}
			if KindOf(err) != KindTemplate {
				t.Errorf("kind = %v, want %v", KindOf(err), KindTemplate)
			}
		})
	}
}

func TestRenderReusesCompiledTemplate(t *testing.T) {
	renderer, err := NewRenderer(16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src := "Hello {{ name }}"
	if _, err := renderer.Render(src, map[string]any{"name": "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, ok := renderer.cache.Get(src)
	if !ok {
		t.Fatal("expected template to be cached")
	}

	if _, err := renderer.Render(src, map[string]any{"name": "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := renderer.cache.Get(src)
	if first != second {
		t.Error("second render recompiled instead of reusing the cache")
	}
}

func TestRenderCacheIsBounded(t *testing.T) {
	renderer, err := NewRenderer(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, src := range []string{"{{ a }}", "{{ b }}", "{{ c }}"} {
		if _, err := renderer.Render(src, map[string]any{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if n := renderer.cache.Len(); n > 2 {
		t.Errorf("cache holds %d entries, want at most 2", n)
	}
}
