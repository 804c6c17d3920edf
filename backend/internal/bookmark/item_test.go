package bookmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply_ReplacesTextAndClearsTruncation(t *testing.T) {
	it := &Item{
		ID:          "1",
		Text:        "clipped te",
		IsTruncated: true,
		FetchMethod: "browser",
		Hashtags:    []string{"partial"},
	}

	it.Apply(FullRecord{
		ID:       "1",
		Text:     "clipped text, restored in full.",
		Hashtags: []string{"complete"},
		ReplyTo:  "99",
	})

	assert.Equal(t, "clipped text, restored in full.", it.Text)
	assert.False(t, it.IsTruncated)
	assert.Equal(t, "api", it.FetchMethod)
	assert.Equal(t, []string{"complete"}, it.Hashtags)
	assert.Equal(t, "99", it.ReplyTo)
}

func TestApply_KeepsBrowserFieldsWhenSourceOmitsThem(t *testing.T) {
	it := &Item{
		ID:             "1",
		Text:           "clipped",
		IsTruncated:    true,
		AuthorUsername: "alice",
		Mentions:       []string{"bob"},
		URLs:           []string{"https://example.com"},
	}

	it.Apply(FullRecord{ID: "1", Text: "full text."})

	assert.Equal(t, "alice", it.AuthorUsername)
	assert.Equal(t, []string{"bob"}, it.Mentions)
	assert.Equal(t, []string{"https://example.com"}, it.URLs)
}
