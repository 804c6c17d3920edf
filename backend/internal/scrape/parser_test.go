package scrape

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_FullItem(t *testing.T) {
	tweet := &fakeTweet{
		href:        "/someone/status/1234567890?ref_src=twsrc",
		text:        "Shipping a new #Graph pipeline with @alice. Huge thanks to @bob!",
		authorBlock: "Some One\n@someone\n·\n2h",
		html: `<article>
			<a href="/someone/status/1234567890">permalink</a>
			<a href="https://example.com/post?utm_source=x">link</a>
			<a href="https://example.com/post">dup</a>
			<a href="/i/bookmarks">internal</a>
		</article>`,
	}
	d := newFakeDriver([][]*fakeTweet{{tweet}})
	handles, _ := d.QueryAll(context.Background(), SelectorTweet)

	item := NewParser().Parse(context.Background(), d, handles[0])
	if item == nil {
		t.Fatal("expected item, got nil")
	}

	assert.Equal(t, "1234567890", item.ID)
	assert.Equal(t, "https://x.com/someone/status/1234567890", item.SourceURL)
	assert.Equal(t, "someone", item.AuthorUsername)
	assert.Equal(t, []string{"Graph"}, item.Hashtags)
	assert.Equal(t, []string{"alice", "bob"}, item.Mentions)
	assert.Equal(t, []string{"https://example.com/post"}, item.URLs)
	assert.False(t, item.IsTruncated)
	assert.Equal(t, "browser", item.FetchMethod)
	assert.False(t, item.CapturedAt.IsZero())
}

func TestParse_NoPermalink(t *testing.T) {
	d := newFakeDriver([][]*fakeTweet{{{text: "orphan element"}}})
	handles, _ := d.QueryAll(context.Background(), SelectorTweet)

	item := NewParser().Parse(context.Background(), d, handles[0])
	assert.Nil(t, item)
}

func TestParse_EmptyText(t *testing.T) {
	d := newFakeDriver([][]*fakeTweet{{{href: "/u/status/42", text: "   "}}})
	handles, _ := d.QueryAll(context.Background(), SelectorTweet)

	item := NewParser().Parse(context.Background(), d, handles[0])
	assert.Nil(t, item)
}

func TestParse_TruncationFromAffordance(t *testing.T) {
	cases := []struct {
		name      string
		clickOK   bool
		truncated bool
	}{
		{"expanded", true, false},
		{"expansion failed", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newFakeDriver([][]*fakeTweet{{{
				href:     "/u/status/77",
				text:     "some clipped text",
				showMore: true,
				clickOK:  tc.clickOK,
			}}})
			handles, _ := d.QueryAll(context.Background(), SelectorTweet)

			item := NewParser().Parse(context.Background(), d, handles[0])
			if item == nil {
				t.Fatal("expected item, got nil")
			}
			assert.Equal(t, tc.truncated, item.IsTruncated)
		})
	}
}

func TestParse_TruncationHeuristic(t *testing.T) {
	long := strings.Repeat("word ", 50)

	cases := []struct {
		name      string
		text      string
		truncated bool
	}{
		{"short text", "just a short note", false},
		{"long text ending mid-sentence", long + "and then it", true},
		{"long text with terminal period", long + "done.", false},
		{"long text with ellipsis", long + "more…", false},
		{"long text with closing quote", long + `finished."`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newFakeDriver([][]*fakeTweet{{{href: "/u/status/9", text: tc.text}}})
			handles, _ := d.QueryAll(context.Background(), SelectorTweet)

			item := NewParser().Parse(context.Background(), d, handles[0])
			if item == nil {
				t.Fatal("expected item, got nil")
			}
			assert.Equal(t, tc.truncated, item.IsTruncated)
		})
	}
}

func TestTweetIDFromHref(t *testing.T) {
	cases := []struct {
		href string
		want string
	}{
		{"/user/status/123456", "123456"},
		{"/user/status/123456?s=20", "123456"},
		{"/user/status/123456/photo/1", "123456"},
		{"https://x.com/user/status/789", "789"},
		{"/user/profile", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tweetIDFromHref(tc.href), "href %q", tc.href)
	}
}

func TestUsernameFromAuthorBlock(t *testing.T) {
	assert.Equal(t, "someone", usernameFromAuthorBlock("Some One\n@someone\n·\n2h"))
	assert.Equal(t, "a_user", usernameFromAuthorBlock("Name @a_user · 5m"))
	assert.Equal(t, "", usernameFromAuthorBlock("No handle here"))
}

func TestExtractHashtags_CasePreservingDedup(t *testing.T) {
	tags := extractHashtags("#AI is not #ai is not #Ai, but #AI repeats")
	assert.Equal(t, []string{"AI", "ai", "Ai"}, tags)
}

func TestExtractMentions_FirstSeenOrder(t *testing.T) {
	mentions := extractMentions("@zed then @abe then @zed again")
	assert.Equal(t, []string{"zed", "abe"}, mentions)
}

func TestExtractURLs_CapAndFilter(t *testing.T) {
	var anchors []string
	for _, u := range []string{
		"https://a.example/1", "https://a.example/2", "https://a.example/3",
		"https://a.example/4", "https://a.example/5", "https://a.example/6",
	} {
		anchors = append(anchors, `<a href="`+u+`">x</a>`)
	}
	anchors = append(anchors, `<a href="/relative/path">rel</a>`)
	anchors = append(anchors, `<a href="https://x.com/u/status/1">perm</a>`)

	urls := extractURLs("<div>" + strings.Join(anchors, "") + "</div>")
	assert.Len(t, urls, maxURLsPerItem)
	assert.NotContains(t, urls, "https://a.example/6")
}
