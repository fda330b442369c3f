package digest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	pub := time.Date(2024, 5, 30, 9, 0, 0, 0, time.UTC)
	d := Digest{
		Since: time.Date(2024, 5, 31, 7, 0, 0, 0, time.UTC),
		Until: time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC),
		Count: 2,
		Groups: []Group{
			{Topic: "Go", Entries: []Entry{
				{ArticleID: 1, Title: "Go 1.23 <released>", URL: "https://go.dev/blog/go1.23", PublishedAt: &pub, Summary: "Range over func.", Tags: []string{"release", "go"}},
				{ArticleID: 2, Title: "Untitled", URL: "https://example.com/x"},
			}},
		},
	}

	r, err := Render(d, "Morning news")
	require.NoError(t, err)
	assert.Equal(t, "Morning news: 2 articles (2024-06-01)", r.Subject)
	assert.Contains(t, r.HTML, "<h2>Go</h2>")
	assert.Contains(t, r.HTML, "Go 1.23 &lt;released&gt;")
	assert.Contains(t, r.HTML, `href="https://go.dev/blog/go1.23"`)
	assert.Contains(t, r.HTML, "2024-05-30 09:00 UTC")
	assert.Contains(t, r.HTML, "release, go")

	assert.Contains(t, r.Text, "# Morning news: 2 articles (2024-06-01)")
	assert.Contains(t, r.Text, "## Go")
	assert.Contains(t, r.Text, "- [Go 1.23 <released>](https://go.dev/blog/go1.23)")
	assert.Contains(t, r.Text, "Range over func.")
	assert.NotContains(t, r.Text, "<html")
}

func TestSubject(t *testing.T) {
	d := Digest{Count: 1, Until: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "feedsieve digest: 1 article (2024-06-01)", Subject(d, " "))
}
