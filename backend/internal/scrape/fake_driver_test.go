package scrape

import (
	"context"
	"fmt"
	"time"

	"tweet-graph/backend/internal/capture"
)

// fakeTweet is one rendered tweet element in the fake feed.
type fakeTweet struct {
	href        string
	text        string
	authorBlock string
	html        string
	showMore    bool
	clickOK     bool
}

type fakeHandle struct {
	kind  string
	tweet *fakeTweet
}

func (h *fakeHandle) String() string {
	return fmt.Sprintf("fake[%s]", h.kind)
}

// fakeDriver serves a scripted sequence of passes. Each ScrollBy advances to
// the next pass; the last pass repeats once the script runs out.
type fakeDriver struct {
	passes  [][]*fakeTweet
	passIdx int

	navErr      error
	waitFound   bool
	waitErr     error
	queryErrAt  map[int]error
	scrollErrAt map[int]error
	scrolls     int
	navigated   string
}

func newFakeDriver(passes [][]*fakeTweet) *fakeDriver {
	return &fakeDriver{
		passes:      passes,
		waitFound:   true,
		queryErrAt:  map[int]error{},
		scrollErrAt: map[int]error{},
	}
}

func (d *fakeDriver) current() []*fakeTweet {
	if len(d.passes) == 0 {
		return nil
	}
	idx := d.passIdx
	if idx >= len(d.passes) {
		idx = len(d.passes) - 1
	}
	return d.passes[idx]
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	d.navigated = url
	return d.navErr
}

func (d *fakeDriver) WaitForElement(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	return d.waitFound, d.waitErr
}

func (d *fakeDriver) QueryAll(ctx context.Context, selector string) ([]capture.ElementHandle, error) {
	if err, ok := d.queryErrAt[d.passIdx+1]; ok {
		return nil, err
	}
	var handles []capture.ElementHandle
	for _, t := range d.current() {
		handles = append(handles, &fakeHandle{kind: "tweet", tweet: t})
	}
	return handles, nil
}

func (d *fakeDriver) QueryWithin(ctx context.Context, root capture.ElementHandle, selector string) ([]capture.ElementHandle, error) {
	h := root.(*fakeHandle)
	switch selector {
	case selectorPermalink:
		if h.tweet.href == "" {
			return nil, nil
		}
		return []capture.ElementHandle{&fakeHandle{kind: "link", tweet: h.tweet}}, nil
	case selectorTweetText:
		if h.tweet.text == "" {
			return nil, nil
		}
		return []capture.ElementHandle{&fakeHandle{kind: "text", tweet: h.tweet}}, nil
	case selectorAuthor:
		if h.tweet.authorBlock == "" {
			return nil, nil
		}
		return []capture.ElementHandle{&fakeHandle{kind: "author", tweet: h.tweet}}, nil
	case selectorShowMore:
		if !h.tweet.showMore {
			return nil, nil
		}
		return []capture.ElementHandle{&fakeHandle{kind: "show-more", tweet: h.tweet}}, nil
	}
	return nil, nil
}

func (d *fakeDriver) Text(ctx context.Context, eh capture.ElementHandle) (string, error) {
	h := eh.(*fakeHandle)
	switch h.kind {
	case "text":
		return h.tweet.text, nil
	case "author":
		return h.tweet.authorBlock, nil
	}
	return "", nil
}

func (d *fakeDriver) Attribute(ctx context.Context, eh capture.ElementHandle, name string) (string, bool, error) {
	h := eh.(*fakeHandle)
	if name == "href" && h.tweet.href != "" {
		return h.tweet.href, true, nil
	}
	return "", false, nil
}

func (d *fakeDriver) OuterHTML(ctx context.Context, eh capture.ElementHandle) (string, error) {
	return eh.(*fakeHandle).tweet.html, nil
}

func (d *fakeDriver) Click(ctx context.Context, eh capture.ElementHandle, timeout time.Duration) bool {
	return eh.(*fakeHandle).tweet.clickOK
}

func (d *fakeDriver) ScrollBy(ctx context.Context, pixels int) error {
	if err, ok := d.scrollErrAt[d.passIdx+1]; ok {
		return err
	}
	d.scrolls++
	d.passIdx++
	return nil
}

func (d *fakeDriver) Close(ctx context.Context) error {
	return nil
}
