package themes

import (
	"regexp"
	"strings"
)

// themeKeywords maps a theme category to the lowercase keywords that imply
// it. One hit per category is enough.
var themeKeywords = map[string][]string{
	"ai":             {"ai", "artificial intelligence", "machine learning", "ml", "deep learning", "neural network"},
	"llm":            {"llm", "gpt", "chatgpt", "claude", "openai", "anthropic", "gemini", "llama"},
	"agents":         {"agent", "agentic", "autonomous", "automation", "workflow"},
	"infrastructure": {"cloud", "aws", "gcp", "azure", "kubernetes", "docker", "api"},
	"business":       {"startup", "b2b", "b2c", "saas", "enterprise", "founder", "vc", "funding"},
	"crypto":         {"blockchain", "crypto", "bitcoin", "ethereum", "defi", "nft", "web3"},
	"dev":            {"python", "javascript", "typescript", "rust", "go", "coding", "programming"},
	"security":       {"security", "privacy", "encryption", "auth", "authentication"},
}

// themeCategories fixes the iteration order so output is deterministic.
var themeCategories = []string{"ai", "llm", "agents", "infrastructure", "business", "crypto", "dev", "security"}

var (
	multiWordProperNoun = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)\b`)
	sentenceSplit       = regexp.MustCompile(`[.!?]+\s+`)
	nonAlphanumeric     = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// stopwords are common capitalized words that are not entity names.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {},
}

// Extract derives theme categories and named entities from tweet text. It is
// deterministic and recomputed on every store, never cached on the node.
func Extract(text string) (themes []string, entities []string) {
	lower := strings.ToLower(text)

	for _, category := range themeCategories {
		for _, kw := range themeKeywords[category] {
			if strings.Contains(lower, kw) {
				themes = append(themes, category)
				break
			}
		}
	}

	seen := make(map[string]struct{})
	add := func(name string) {
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		entities = append(entities, name)
	}

	// Multi-word proper nouns first: "Sam Altman", "New York"
	for _, m := range multiWordProperNoun.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}

	// Single capitalized words, skipping the opening word of the text and
	// common stopwords
	sentences := sentenceSplit.Split(text, -1)
	for i, sentence := range sentences {
		words := strings.Fields(sentence)
		for j, word := range words {
			if i == 0 && j == 0 {
				continue
			}
			if _, stop := stopwords[strings.ToLower(word)]; stop {
				continue
			}
			if len(word) < 2 || !isUpper(rune(word[0])) {
				continue
			}
			clean := nonAlphanumeric.ReplaceAllString(word, "")
			if len(clean) > 2 {
				add(clean)
			}
		}
	}

	return themes, entities
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}
