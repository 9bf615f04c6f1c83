package main

import (
	"strings"
	"testing"
)

func TestResolveCatalogURL(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "")
	if got := resolveCatalogURL(""); got != "" {
		t.Fatalf("expected catalog disabled, got %q", got)
	}
	if got := resolveCatalogURL("postgres://x/y"); got != "postgres://x/y" {
		t.Fatalf("flag value not used: %q", got)
	}

	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_DB", "captures")
	t.Setenv("POSTGRES_PORT", "")
	if got := resolveCatalogURL(""); got != "postgres://u:p@db:5432/captures" {
		t.Fatalf("unexpected env url: %q", got)
	}
}

func TestSummarizeTruncatesImages(t *testing.T) {
	data := map[string]any{"image": strings.Repeat("A", 100)}
	out := summarize(data)
	if s := out["image"].(string); !strings.HasSuffix(s, "(100 chars)") {
		t.Fatalf("unexpected summary: %q", s)
	}
	if len(data["image"].(string)) != 100 {
		t.Fatalf("summarize modified its input")
	}
	if got := summarize(map[string]any{}); len(got) != 0 {
		t.Fatalf("unexpected summary of empty data: %v", got)
	}
}
