package classifier_test

import (
	"strings"
	"testing"

	"bobbin/internal/classifier"
)

func TestExtractTextPlain(t *testing.T) {
	got := classifier.ExtractText("  plain   text\n\twith  spacing ")
	if got != "plain text with spacing" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestExtractTextStripsChrome(t *testing.T) {
	html := `<html><head><style>.x{}</style></head><body>
        <nav>site nav</nav>
        <h1>Title Here</h1>
        <p>First paragraph.</p>
        <script>alert("no")</script>
        <p>Second   paragraph.</p>
        <footer>copyright</footer>
    </body></html>`

	got := classifier.ExtractText(html)
	if strings.Contains(got, "site nav") || strings.Contains(got, "alert") || strings.Contains(got, "copyright") {
		t.Fatalf("chrome leaked into output: %q", got)
	}
	for _, want := range []string{"Title Here", "First paragraph.", "Second paragraph."} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
}

func TestExtractTextEmpty(t *testing.T) {
	if got := classifier.ExtractText("   "); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}
