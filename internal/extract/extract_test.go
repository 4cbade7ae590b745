package extract

import (
	"strings"
	"testing"
)

func TestTextSeparatesBodyAndImportant(t *testing.T) {
	doc := `<html>
	<head><title>Crystal Caverns</title></head>
	<body>
		<h1>Geology Guide</h1>
		<p>Limestone dissolves over <b>millennia</b> into caves.</p>
	</body>
	</html>`
	e := New()
	body, important := e.Text(doc)

	for _, word := range []string{"Limestone", "dissolves", "millennia", "caves"} {
		if !strings.Contains(body, word) {
			t.Errorf("body missing %q: %q", word, body)
		}
	}
	for _, word := range []string{"Crystal Caverns", "Geology Guide", "millennia"} {
		if !strings.Contains(important, word) {
			t.Errorf("important missing %q: %q", word, important)
		}
	}
	if strings.Contains(important, "Limestone") {
		t.Errorf("important should not include plain paragraph text: %q", important)
	}
}

func TestTextStripsMarkupFromBody(t *testing.T) {
	body, _ := New().Text(`<p class="x">hello <a href="http://y">world</a></p>`)
	if strings.Contains(body, "href") || strings.Contains(body, "<") {
		t.Errorf("markup leaked into body: %q", body)
	}
	if !strings.Contains(body, "hello") || !strings.Contains(body, "world") {
		t.Errorf("text lost from body: %q", body)
	}
}

func TestTextDropsScriptContent(t *testing.T) {
	body, _ := New().Text(`<body><script>var secretToken = 1;</script><p>visible</p></body>`)
	if strings.Contains(body, "secretToken") {
		t.Errorf("script content leaked: %q", body)
	}
	if !strings.Contains(body, "visible") {
		t.Errorf("visible text lost: %q", body)
	}
}

func TestTextUnescapesEntities(t *testing.T) {
	body, _ := New().Text(`<p>fish &amp; chips</p>`)
	if strings.Contains(body, "amp") {
		t.Errorf("entity not unescaped: %q", body)
	}
	if !strings.Contains(body, "&") {
		t.Errorf("ampersand lost: %q", body)
	}
}

func TestTextPlainInput(t *testing.T) {
	body, important := New().Text("just plain words")
	if !strings.Contains(body, "just plain words") {
		t.Errorf("plain text body = %q", body)
	}
	if important != "" {
		t.Errorf("plain text important = %q, want empty", important)
	}
}

func TestImportantNestedTagsCountPerEnclosure(t *testing.T) {
	_, important := New().Text(`<h1>alpha <b>beta</b></h1>`)
	if got := strings.Count(important, "beta"); got != 2 {
		t.Errorf("nested bold inside h1 should appear twice, got %d in %q", got, important)
	}
	if got := strings.Count(important, "alpha"); got != 1 {
		t.Errorf("h1 text should appear once, got %d in %q", got, important)
	}
}

func TestImportantEmphasisTags(t *testing.T) {
	_, important := New().Text(`<p><strong>deadline</strong> tomorrow is <em>firm</em></p>`)
	for _, word := range []string{"deadline", "firm"} {
		if !strings.Contains(important, word) {
			t.Errorf("important missing %q: %q", word, important)
		}
	}
	for _, word := range []string{"tomorrow", "is"} {
		if strings.Contains(important, word) {
			t.Errorf("plain text %q in important: %q", word, important)
		}
	}
}

func TestTextEmptyInput(t *testing.T) {
	body, important := New().Text("")
	if strings.TrimSpace(body) != "" || important != "" {
		t.Errorf("empty input produced body=%q important=%q", body, important)
	}
}
