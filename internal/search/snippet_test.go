package search

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSnippetHighlightsMatch(t *testing.T) {
	html := `<html><body><p>The quick brown fox jumps over the lazy dog.</p></body></html>`

	snippet := Snippet("brown fox", html, 200)

	if !strings.Contains(snippet, "<b>brown</b>") {
		t.Errorf("Expected 'brown' highlighted, got %q", snippet)
	}
	if !strings.Contains(snippet, "<b>fox</b>") {
		t.Errorf("Expected 'fox' highlighted, got %q", snippet)
	}
}

func TestSnippetCaseInsensitive(t *testing.T) {
	html := `<html><body>Foxes are cunning. The FOX waited.</body></html>`

	snippet := Snippet("fox", html, 200)

	if !strings.Contains(snippet, "<b>Fox</b>") && !strings.Contains(snippet, "<b>FOX</b>") {
		t.Errorf("Expected a case-insensitive highlight, got %q", snippet)
	}
}

func TestSnippetStripsMarkup(t *testing.T) {
	html := `<html><body><script>var x = "fox";</script><p>A real fox appeared.</p></body></html>`

	snippet := Snippet("fox", html, 200)

	if strings.Contains(snippet, "var x") {
		t.Errorf("Script content leaked into snippet: %q", snippet)
	}
	if !strings.Contains(snippet, "<b>fox</b>") {
		t.Errorf("Expected the visible occurrence highlighted, got %q", snippet)
	}
}

func TestSnippetFallbackPrefix(t *testing.T) {
	long := strings.Repeat("word ", 200)
	html := "<html><body><p>" + long + "</p></body></html>"

	snippet := Snippet("absent", html, 200)

	if snippet == "" {
		t.Fatal("Expected a fallback snippet for a non-matching query")
	}
	if utf8.RuneCountInString(snippet) > fallbackLength {
		t.Errorf("Expected fallback capped at %d runes, got %d", fallbackLength, utf8.RuneCountInString(snippet))
	}
	if strings.Contains(snippet, "<b>") {
		t.Errorf("Expected no highlighting without a match, got %q", snippet)
	}
}

func TestSnippetBoundedWindow(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body><p>")
	b.WriteString(strings.Repeat("filler ", 100))
	b.WriteString("needle ")
	b.WriteString(strings.Repeat("filler ", 100))
	b.WriteString("</p></body></html>")

	radius := 50
	snippet := Snippet("needle", b.String(), radius)

	if !strings.Contains(snippet, "<b>needle</b>") {
		t.Fatalf("Expected the match highlighted, got %q", snippet)
	}
	// Window, highlighting markers and the trailing ellipsis stay well
	// under the full text length.
	if utf8.RuneCountInString(snippet) > 4*radius {
		t.Errorf("Expected a bounded window, got %d runes", utf8.RuneCountInString(snippet))
	}
}

func TestSnippetEllipsis(t *testing.T) {
	html := `<html><body>alpha needle beta gamma delta epsilon zeta continues without end</body></html>`

	snippet := Snippet("needle", html, 20)

	if !strings.HasSuffix(snippet, "...") {
		t.Errorf("Expected a trailing ellipsis on a mid-sentence cut, got %q", snippet)
	}
}

func TestSnippetEmptyContent(t *testing.T) {
	if got := Snippet("fox", "", 200); got != "" {
		t.Errorf("Expected empty snippet for empty content, got %q", got)
	}
}
