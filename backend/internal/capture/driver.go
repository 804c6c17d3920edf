package capture

import (
	"context"
	"encoding/json"
	"os"
	"time"
)

// ElementHandle is an opaque reference to a DOM element owned by a Driver.
// Handles are only valid until the next scroll or navigation.
type ElementHandle interface {
	// String describes the element for logging
	String() string
}

// Driver abstracts the browser-automation session that produces raw item
// snapshots. Implementations report failures as *errors.ErrCaptureFailed.
type Driver interface {
	// Navigate loads the given URL and waits for the page to be ready
	Navigate(ctx context.Context, url string) error

	// WaitForElement blocks until the selector matches a visible element or
	// the timeout elapses. A timeout is not an error.
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) (bool, error)

	// QueryAll returns handles for every element currently matching selector
	QueryAll(ctx context.Context, selector string) ([]ElementHandle, error)

	// QueryWithin returns handles matching selector inside root
	QueryWithin(ctx context.Context, root ElementHandle, selector string) ([]ElementHandle, error)

	// Text returns the rendered text content of the element
	Text(ctx context.Context, h ElementHandle) (string, error)

	// Attribute returns the value of the named attribute and whether it exists
	Attribute(ctx context.Context, h ElementHandle, name string) (string, bool, error)

	// OuterHTML returns the element's outer HTML for offline parsing
	OuterHTML(ctx context.Context, h ElementHandle) (string, error)

	// Click activates the element. It returns false when the click could not
	// be completed within the timeout; this is a soft failure.
	Click(ctx context.Context, h ElementHandle, timeout time.Duration) bool

	// ScrollBy scrolls the viewport down by the given pixel count
	ScrollBy(ctx context.Context, pixels int) error

	// Close tears down the browser session
	Close(ctx context.Context) error
}

// Cookie is one browser cookie loaded from the session file.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

// LoadCookies reads the exported session cookies. A missing or unreadable
// file yields an empty set, not an error: the caller runs unauthenticated.
func LoadCookies(path string) []Cookie {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil
	}
	for i := range cookies {
		if cookies[i].Domain == "" {
			cookies[i].Domain = ".x.com"
		}
		if cookies[i].Path == "" {
			cookies[i].Path = "/"
		}
	}
	return cookies
}
