package extractor

import (
	"errors"
	"fmt"
	"iter"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"go.uber.org/zap"

	"github.com/dshills/linkarchiver/internal/metrics"
	"github.com/dshills/linkarchiver/pkg/types"
)

// inlineLink matches [label](target); the label may not contain parentheses
// and the target may not contain brackets or parentheses.
var inlineLink = regexp.MustCompile(`\[[^()]+\]\(([^\[\]()]+)\)`)

var (
	// ErrNotAbsolute is returned by Parse for targets without scheme or host
	ErrNotAbsolute = errors.New("not an absolute URL")
	// ErrUnknownFormat is returned by ToMarkdown for unsupported formats
	ErrUnknownFormat = errors.New("unknown document format")
)

// Format names the markup of an input document
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat maps user input to a Format. Empty input means Markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatForExtension picks the format from a file extension
func FormatForExtension(ext string) Format {
	switch strings.ToLower(ext) {
	case ".html", ".htm":
		return FormatHTML
	default:
		return FormatMarkdown
	}
}

// Extractor turns document text into candidate URLs
type Extractor struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates an Extractor. Both arguments may be nil.
func New(logger *zap.Logger, m *metrics.Metrics) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger, metrics: m}
}

// Links yields every inline link target in text, in order of appearance
func Links(text string) iter.Seq[types.Link] {
	return func(yield func(types.Link) bool) {
		for offset := 0; offset < len(text); {
			loc := inlineLink.FindStringSubmatchIndex(text[offset:])
			if loc == nil {
				return
			}
			target := text[offset+loc[2] : offset+loc[3]]
			if !yield(sanitize(target)) {
				return
			}
			offset += loc[1]
		}
	}
}

// sanitize truncates a target at its first literal space
func sanitize(target string) types.Link {
	if i := strings.IndexByte(target, ' '); i >= 0 {
		target = target[:i]
	}
	return types.Link(target)
}

// Parse validates a link as an absolute URL with a scheme and host
func Parse(link types.Link) (types.CandidateURL, error) {
	u, err := url.Parse(string(link))
	if err != nil {
		return types.CandidateURL{}, err
	}
	if u.Scheme == "" || u.Host == "" {
		return types.CandidateURL{}, fmt.Errorf("%w: %q", ErrNotAbsolute, string(link))
	}
	return types.CandidateURL{Raw: string(link), URL: u}, nil
}

// Candidates yields the links in text that parse as absolute URLs.
// Other targets are logged and skipped.
func (e *Extractor) Candidates(text string) iter.Seq[types.CandidateURL] {
	return func(yield func(types.CandidateURL) bool) {
		for link := range Links(text) {
			candidate, err := Parse(link)
			if err != nil {
				e.logger.Debug("captured non-URL link target, ignoring",
					zap.String("target", string(link)),
					zap.Error(err))
				e.metrics.LinkSkipped()
				continue
			}
			e.metrics.LinkExtracted()
			if !yield(candidate) {
				return
			}
		}
	}
}

// ToMarkdown returns text unchanged for Markdown and converts HTML
func ToMarkdown(text string, format Format) (string, error) {
	switch format {
	case FormatMarkdown, "":
		return text, nil
	case FormatHTML:
		return FromHTML(text)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}

// FromHTML converts an HTML document to Markdown so that its anchors become
// inline links
func FromHTML(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML: %w", err)
	}
	return markdown, nil
}
