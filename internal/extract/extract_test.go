package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsieve/internal/domain"
)

const page = `<!doctype html>
<html><head>
<script type="application/ld+json">{"@type":"NewsArticle","headline":"Hello"}</script>
<script type="application/ld+json">{"@type": broken</script>
<script type="application/ld+json">"just a string"</script>
<script type="application/ld+json">[{"@type":"Person","name":"Ann"}, 3]</script>
</head><body>
<div class="byline"> By Ann </div>
<article>
  <p> First paragraph. </p>
  <p>   </p>
  <p>Second paragraph.</p>
</article>
</body></html>`

func TestBodySelectorJoinsNonEmptyMatches(t *testing.T) {
	res, err := Extract(page, domain.ExtractionConfig{BodySelector: "article p"})
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", res.Text)
	assert.Empty(t, res.StructuredData)
}

func TestBodySelectorNoMatch(t *testing.T) {
	res, err := Extract(page, domain.ExtractionConfig{BodySelector: ".does-not-exist"})
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
}

func TestStructuredData(t *testing.T) {
	res, err := Extract(page, domain.ExtractionConfig{BodySelector: "article p", StructuredData: true})
	require.NoError(t, err)

	require.Len(t, res.StructuredData, 2)
	assert.Equal(t, "NewsArticle", res.StructuredData[0]["@type"])
	assert.Equal(t, "Ann", res.StructuredData[1]["name"])
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "json-ld block 1")
}

func TestStructuredDataDisabledIgnoresScripts(t *testing.T) {
	res, err := Extract(page, domain.ExtractionConfig{BodySelector: "article p"})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
}

func TestMetadataSelectors(t *testing.T) {
	cfg := domain.ExtractionConfig{
		BodySelector: "article p",
		MetadataSelectors: map[string]string{
			"byline":  ".byline",
			"missing": ".nope",
		},
	}
	res, err := Extract(page, cfg)
	require.NoError(t, err)
	require.Len(t, res.StructuredData, 1)
	assert.Equal(t, map[string]any{SelectorKey: "byline", "value": "By Ann"}, res.StructuredData[0])
	assert.Len(t, cfg.MetadataSelectors, 2)
}

func TestReadabilityFallbackWithoutSelector(t *testing.T) {
	body := strings.Repeat("Go is an open source programming language that makes it simple to build software. ", 12)
	html := `<html><body><nav>Home | About</nav><article><h1>Title</h1><p>` + body + `</p></article><footer>(c) me</footer></body></html>`

	res, err := Extract(html, domain.ExtractionConfig{})
	require.NoError(t, err)
	assert.Contains(t, res.Text, "open source programming language")
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Hello world !", PlainText("<p>Hello <b>world</b></p>\n<p>!</p>"))
	assert.Equal(t, "", PlainText("  "))
}
