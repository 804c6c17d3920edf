package themes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_ThemeCategories(t *testing.T) {
	themes, _ := Extract("deploying llm workloads on kubernetes with docker")
	assert.Contains(t, themes, "llm")
	assert.Contains(t, themes, "infrastructure")
	assert.NotContains(t, themes, "crypto")
}

func TestExtract_OneHitPerCategory(t *testing.T) {
	// Several keywords from the same category still yield it once.
	themes, _ := Extract("chatgpt vs claude vs gemini")
	count := 0
	for _, th := range themes {
		if th == "llm" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtract_NoThemes(t *testing.T) {
	themes, _ := Extract("just had a sandwich")
	assert.Empty(t, themes)
}

func TestExtract_MultiWordEntities(t *testing.T) {
	_, entities := Extract("Great talk by Sam Altman about the future")
	assert.Contains(t, entities, "Sam Altman")
}

func TestExtract_SingleWordEntities(t *testing.T) {
	_, entities := Extract("Yesterday I tried Neo4j and it was great")
	assert.Contains(t, entities, "Neo4j")
	// The opening word is capitalized by convention, not an entity.
	assert.NotContains(t, entities, "Yesterday")
}

func TestExtract_StopwordsSkipped(t *testing.T) {
	_, entities := Extract("Reading The article about things. The end")
	assert.NotContains(t, entities, "The")
}

func TestExtract_ShortTokensDropped(t *testing.T) {
	_, entities := Extract("working with Go all day")
	// Cleaned tokens of two characters or fewer are noise.
	assert.NotContains(t, entities, "Go")
}

func TestExtract_Deterministic(t *testing.T) {
	text := "Anthropic and OpenAI both ship llm agents on aws"
	t1, e1 := Extract(text)
	for i := 0; i < 10; i++ {
		t2, e2 := Extract(text)
		assert.Equal(t, t1, t2)
		assert.Equal(t, e1, e2)
	}
}
