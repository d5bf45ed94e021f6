package extractor

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/linkarchiver/internal/metrics"
	"github.com/dshills/linkarchiver/pkg/types"
)

func collectLinks(text string) []string {
	var out []string
	for l := range Links(text) {
		out = append(out, string(l))
	}
	return out
}

func TestLinks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"no links", "plain text with https://bare.example.com", nil},
		{"single", "see [docs](https://example.com/docs).", []string{"https://example.com/docs"}},
		{"multiple in order", "[a](https://a.com) and [b](https://b.com)", []string{"https://a.com", "https://b.com"}},
		{"space salvage", "[Go](https://go.dev some words)", []string{"https://go.dev"}},
		{"title attribute", `[Go](https://go.dev "The Go site")`, []string{"https://go.dev"}},
		{"leading space yields empty", "[x]( https://go.dev)", []string{""}},
		{"non-url target kept", "[notes](./notes.md)", []string{"./notes.md"}},
		{"parens in label do not match", "[a (b)](https://x.com)", nil},
		{"label spans lines", "[multi\nline](https://x.com)", []string{"https://x.com"}},
		{"image syntax", "![alt](https://img.example.com/a.png)", []string{"https://img.example.com/a.png"}},
		{"empty target ignored", "[a]()", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collectLinks(tt.text))
		})
	}
}

func TestLinksRestartable(t *testing.T) {
	seq := Links("[a](https://a.com) [b](https://b.com)")

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
}

func TestLinksEarlyStop(t *testing.T) {
	var got []types.Link
	for l := range Links("[a](https://a.com) [b](https://b.com) [c](https://c.com)") {
		got = append(got, l)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []types.Link{"https://a.com", "https://b.com"}, got)
}

func TestParse(t *testing.T) {
	c, err := Parse("https://Example.com:8080/path?q=1")
	require.NoError(t, err)
	assert.Equal(t, "https://Example.com:8080/path?q=1", c.Raw)
	assert.Equal(t, "example.com", c.Host())

	_, err = Parse("./notes.md")
	assert.ErrorIs(t, err, ErrNotAbsolute)

	_, err = Parse("mailto:someone@example.com")
	assert.ErrorIs(t, err, ErrNotAbsolute)

	_, err = Parse("http://[::1")
	assert.Error(t, err)
}

func TestCandidates(t *testing.T) {
	m := metrics.New()
	ex := New(nil, m)

	text := "[ok](https://example.com/x) [bad](notes.md) [ip](http://192.168.1.1/admin) [broken](http://%zz)"
	var raws []string
	for c := range ex.Candidates(text) {
		raws = append(raws, c.Raw)
	}

	assert.Equal(t, []string{"https://example.com/x", "http://192.168.1.1/admin"}, raws)
}

func TestCandidatesZeroLinks(t *testing.T) {
	ex := New(nil, nil)
	assert.Empty(t, slices.Collect(ex.Candidates("nothing to see here")))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)

	f, err = ParseFormat("HTML")
	require.NoError(t, err)
	assert.Equal(t, FormatHTML, f)

	_, err = ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	assert.Equal(t, FormatHTML, FormatForExtension(".htm"))
	assert.Equal(t, FormatMarkdown, FormatForExtension(".md"))
}

func TestFromHTML(t *testing.T) {
	html := `<html><body><p>Read <a href="https://example.com/article">this article</a>
and <a href="https://go.dev" title="Go">the Go site</a>.</p></body></html>`

	markdown, err := ToMarkdown(html, FormatHTML)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/article", "https://go.dev"}, collectLinks(markdown))
}

func TestToMarkdownPassThrough(t *testing.T) {
	out, err := ToMarkdown("[a](https://a.com)", FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "[a](https://a.com)", out)

	_, err = ToMarkdown("x", Format("rtf"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
