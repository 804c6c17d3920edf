package scrape

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"tweet-graph/backend/internal/bookmark"
	"tweet-graph/backend/internal/capture"
	"tweet-graph/backend/pkg/logger"
	"go.uber.org/zap"
)

// Selectors for the bookmark feed DOM
const (
	SelectorTweet    = `[data-testid="tweet"]`
	selectorPermalink = `a[href*="/status/"]`
	selectorTweetText = `[data-testid="tweetText"]`
	selectorAuthor    = `[data-testid="User-Name"]`
	selectorShowMore  = `[data-testid="tweet-text-show-more-link"]`
)

const (
	// maxURLsPerItem caps how many external links are kept per tweet
	maxURLsPerItem = 5
	// truncationLengthThreshold is the minimum text length before the
	// trailing-character heuristic applies
	truncationLengthThreshold = 200
	// clickTimeout bounds the show-more expansion attempt
	clickTimeout = 2 * time.Second
)

var (
	hashtagPattern = regexp.MustCompile(`#(\w+)`)
	mentionPattern = regexp.MustCompile(`@(\w+)`)
	// sentenceTerminal are the characters a complete tweet plausibly ends with
	sentenceTerminal = ".!?…\"')]"
)

// Parser extracts a canonical bookmark record from one raw element handle.
type Parser struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewParser creates a parser. The clock is only overridden in tests.
func NewParser() *Parser {
	return &Parser{
		logger: logger.Get(),
		now:    time.Now,
	}
}

// Parse returns a populated item or nil when the element is unparsable.
// It never returns an error: a single bad snapshot is not a pipeline failure.
func (p *Parser) Parse(ctx context.Context, d capture.Driver, h capture.ElementHandle) *bookmark.Item {
	links, err := d.QueryWithin(ctx, h, selectorPermalink)
	if err != nil || len(links) == 0 {
		return nil
	}
	href, ok, err := d.Attribute(ctx, links[0], "href")
	if err != nil || !ok {
		return nil
	}
	id := tweetIDFromHref(href)
	if id == "" {
		return nil
	}

	// A clipped tweet carries a "show more" affordance. Expansion happens
	// before text extraction; a failed click keeps the clipped text.
	affordancePresent := false
	expanded := false
	if more, err := d.QueryWithin(ctx, h, selectorShowMore); err == nil && len(more) > 0 {
		affordancePresent = true
		expanded = d.Click(ctx, more[0], clickTimeout)
		if !expanded {
			p.logger.Debug("Show-more expansion failed", zap.String("tweet_id", id))
		}
	}

	textEls, err := d.QueryWithin(ctx, h, selectorTweetText)
	if err != nil || len(textEls) == 0 {
		return nil
	}
	text, err := d.Text(ctx, textEls[0])
	if err != nil || strings.TrimSpace(text) == "" {
		return nil
	}

	author := ""
	if authorEls, err := d.QueryWithin(ctx, h, selectorAuthor); err == nil && len(authorEls) > 0 {
		if raw, err := d.Text(ctx, authorEls[0]); err == nil {
			author = usernameFromAuthorBlock(raw)
		}
	}

	var urls []string
	if html, err := d.OuterHTML(ctx, h); err == nil {
		urls = extractURLs(html)
	}

	truncated := false
	switch {
	case affordancePresent && expanded:
		truncated = false
	case affordancePresent && !expanded:
		truncated = true
	default:
		truncated = looksTruncated(text)
	}

	return &bookmark.Item{
		ID:             id,
		Text:           text,
		IsTruncated:    truncated,
		AuthorUsername: author,
		Hashtags:       extractHashtags(text),
		Mentions:       extractMentions(text),
		URLs:           urls,
		SourceURL:      "https://x.com" + stripQuery(href),
		CapturedAt:     p.now().UTC(),
		FetchMethod:    "browser",
	}
}

// tweetIDFromHref pulls the status id out of a permalink href.
func tweetIDFromHref(href string) string {
	idx := strings.LastIndex(href, "/status/")
	if idx == -1 {
		return ""
	}
	id := href[idx+len("/status/"):]
	id = stripQuery(id)
	if slash := strings.Index(id, "/"); slash != -1 {
		id = id[:slash]
	}
	return id
}

// usernameFromAuthorBlock extracts the @handle from the rendered author
// block, which concatenates display name, handle and timestamp.
func usernameFromAuthorBlock(raw string) string {
	parts := strings.SplitN(raw, "@", 2)
	if len(parts) < 2 {
		return ""
	}
	handle := parts[1]
	if nl := strings.IndexAny(handle, "\n·"); nl != -1 {
		handle = handle[:nl]
	}
	return strings.TrimSpace(handle)
}

// extractHashtags returns the distinct hashtags in first-seen order.
// Matching is case-preserving: #AI and #ai are different tags.
func extractHashtags(text string) []string {
	return extractTagged(hashtagPattern, text)
}

// extractMentions returns the distinct @mentions in first-seen order.
func extractMentions(text string) []string {
	return extractTagged(mentionPattern, text)
}

func extractTagged(pattern *regexp.Regexp, text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range pattern.FindAllStringSubmatch(text, -1) {
		tag := m[1]
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// extractURLs collects absolute external links from the element's anchors,
// skipping self-referential permalinks, stripping query strings, and capping
// the result.
func extractURLs(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var urls []string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			return true
		}
		if strings.Contains(href, "/status/") {
			// permalink back into the feed, not an external link
			return true
		}
		href = stripQuery(href)
		if _, dup := seen[href]; dup {
			return true
		}
		seen[href] = struct{}{}
		urls = append(urls, href)
		return len(urls) < maxURLsPerItem
	})
	return urls
}

// looksTruncated applies the trailing-character heuristic: long text that
// stops without sentence-terminal punctuation was probably clipped.
func looksTruncated(text string) bool {
	trimmed := strings.TrimRight(text, " \t\n\r")
	if len(trimmed) <= truncationLengthThreshold {
		return false
	}
	runes := []rune(trimmed)
	last := runes[len(runes)-1]
	return !strings.ContainsRune(sentenceTerminal, last)
}

func stripQuery(s string) string {
	if q := strings.Index(s, "?"); q != -1 {
		return s[:q]
	}
	return s
}
