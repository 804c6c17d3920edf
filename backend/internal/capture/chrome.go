package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	apperrors "tweet-graph/backend/pkg/errors"
	"tweet-graph/backend/pkg/logger"
	"go.uber.org/zap"
)

// ChromeDriver drives a headless Chrome session over the DevTools protocol.
type ChromeDriver struct {
	browserCtx  context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      *zap.Logger
}

type chromeHandle struct {
	node *cdp.Node
}

func (h *chromeHandle) String() string {
	return h.node.FullXPath()
}

// NewChromeDriver launches a headless browser and installs the session
// cookies before any navigation.
func NewChromeDriver(ctx context.Context, cookies []Cookie) (*ChromeDriver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1280, 1024),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		browserCtx:  browserCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		logger:      logger.Get(),
	}

	if len(cookies) > 0 {
		if err := chromedp.Run(browserCtx, d.setCookiesAction(cookies)); err != nil {
			d.Close(ctx)
			return nil, apperrors.NewCaptureFailed("set cookies", "", err)
		}
		d.logger.Info("Session cookies installed", zap.Int("count", len(cookies)))
	}

	return d, nil
}

func (d *ChromeDriver) setCookiesAction(cookies []Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

// Navigate loads the URL and waits for the document body.
func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := chromedp.Run(d.browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return apperrors.NewCaptureFailed("navigate", url, err)
	}
	return nil
}

// WaitForElement blocks until the selector is visible or the timeout elapses.
func (d *ChromeDriver) WaitForElement(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	waitCtx, cancel := context.WithTimeout(d.browserCtx, timeout)
	defer cancel()

	err := chromedp.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err == nil {
		return true, nil
	}
	if waitCtx.Err() == context.DeadlineExceeded {
		return false, nil
	}
	return false, apperrors.NewCaptureFailed("wait", selector, err)
}

// QueryAll returns handles for every element matching selector.
func (d *ChromeDriver) QueryAll(ctx context.Context, selector string) ([]ElementHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var nodes []*cdp.Node
	// AtLeast(0) so an empty result set is not an error
	err := chromedp.Run(d.browserCtx,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err != nil {
		return nil, apperrors.NewCaptureFailed("query", selector, err)
	}
	handles := make([]ElementHandle, 0, len(nodes))
	for _, n := range nodes {
		handles = append(handles, &chromeHandle{node: n})
	}
	return handles, nil
}

// QueryWithin returns handles matching selector inside root.
func (d *ChromeDriver) QueryWithin(ctx context.Context, root ElementHandle, selector string) ([]ElementHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, ok := root.(*chromeHandle)
	if !ok {
		return nil, apperrors.NewCaptureFailed("query-within", selector, fmt.Errorf("foreign element handle %T", root))
	}
	var nodes []*cdp.Node
	err := chromedp.Run(d.browserCtx,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0), chromedp.FromNode(h.node)),
	)
	if err != nil {
		return nil, apperrors.NewCaptureFailed("query-within", selector, err)
	}
	handles := make([]ElementHandle, 0, len(nodes))
	for _, n := range nodes {
		handles = append(handles, &chromeHandle{node: n})
	}
	return handles, nil
}

// Text returns the rendered text content of the element.
func (d *ChromeDriver) Text(ctx context.Context, eh ElementHandle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h, ok := eh.(*chromeHandle)
	if !ok {
		return "", apperrors.NewCaptureFailed("text", "", fmt.Errorf("foreign element handle %T", eh))
	}
	var text string
	err := chromedp.Run(d.browserCtx,
		chromedp.Text(h.node.FullXPath(), &text, chromedp.BySearch),
	)
	if err != nil {
		return "", apperrors.NewCaptureFailed("text", h.String(), err)
	}
	return text, nil
}

// Attribute returns the value of the named attribute and whether it exists.
func (d *ChromeDriver) Attribute(ctx context.Context, eh ElementHandle, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	h, ok := eh.(*chromeHandle)
	if !ok {
		return "", false, apperrors.NewCaptureFailed("attribute", name, fmt.Errorf("foreign element handle %T", eh))
	}
	var value string
	var present bool
	err := chromedp.Run(d.browserCtx,
		chromedp.AttributeValue(h.node.FullXPath(), name, &value, &present, chromedp.BySearch),
	)
	if err != nil {
		return "", false, apperrors.NewCaptureFailed("attribute", name, err)
	}
	return value, present, nil
}

// OuterHTML returns the element's outer HTML.
func (d *ChromeDriver) OuterHTML(ctx context.Context, eh ElementHandle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h, ok := eh.(*chromeHandle)
	if !ok {
		return "", apperrors.NewCaptureFailed("outer-html", "", fmt.Errorf("foreign element handle %T", eh))
	}
	var html string
	err := chromedp.Run(d.browserCtx,
		chromedp.OuterHTML(h.node.FullXPath(), &html, chromedp.BySearch),
	)
	if err != nil {
		return "", apperrors.NewCaptureFailed("outer-html", h.String(), err)
	}
	return html, nil
}

// Click activates the element, returning false on timeout or failure.
func (d *ChromeDriver) Click(ctx context.Context, eh ElementHandle, timeout time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	h, ok := eh.(*chromeHandle)
	if !ok {
		return false
	}
	clickCtx, cancel := context.WithTimeout(d.browserCtx, timeout)
	defer cancel()

	err := chromedp.Run(clickCtx, chromedp.Click(h.node.FullXPath(), chromedp.BySearch, chromedp.NodeVisible))
	if err != nil {
		d.logger.Debug("Click failed", zap.String("element", h.String()), zap.Error(err))
		return false
	}
	return true
}

// ScrollBy scrolls the viewport down by the given pixel count.
func (d *ChromeDriver) ScrollBy(ctx context.Context, pixels int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	script := fmt.Sprintf("window.scrollBy(0, %d)", pixels)
	if err := chromedp.Run(d.browserCtx, chromedp.Evaluate(script, nil)); err != nil {
		return apperrors.NewCaptureFailed("scroll", "", err)
	}
	return nil
}

// Close tears down the browser session.
func (d *ChromeDriver) Close(ctx context.Context) error {
	d.cancelCtx()
	d.cancelAlloc()
	return nil
}
