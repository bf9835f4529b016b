package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractPlainText(t *testing.T) {
	path := writeFile(t, "doc.txt", "Plain text body. Second sentence.")
	got, err := ExtractText(path, "doc.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Plain text body. Second sentence." {
		t.Errorf("got %q", got)
	}
}

func TestExtractUnknownExtensionFallsBackToPlain(t *testing.T) {
	path := writeFile(t, "notes.log", "just some log lines")
	got, err := ExtractText(path, "notes.log")
	if err != nil {
		t.Fatal(err)
	}
	if got != "just some log lines" {
		t.Errorf("got %q", got)
	}
}

func TestExtractMarkdownStripsFormatting(t *testing.T) {
	md := "# Title\n\nSome *emphasised* words here.\n\n- first item\n- second item\n"
	path := writeFile(t, "readme.md", md)
	got, err := ExtractText(path, "readme.md")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Title", "emphasised", "first item", "second item"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q: %q", want, got)
		}
	}
	for _, marker := range []string{"#", "*", "- "} {
		if strings.Contains(got, marker) {
			t.Errorf("output still holds markdown marker %q: %q", marker, got)
		}
	}
}

func TestExtractMissingFile(t *testing.T) {
	if _, err := ExtractText(filepath.Join(t.TempDir(), "gone.txt"), "gone.txt"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExtractTextFromXML(t *testing.T) {
	xml := `<p:sp><a:t>Hello</a:t></p:sp><p:sp><a:t>World</a:t></p:sp>`
	got := extractTextFromXML(xml)
	if !strings.Contains(got, "Hello") || !strings.Contains(got, "World") {
		t.Errorf("got %q", got)
	}
}
