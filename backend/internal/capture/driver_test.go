package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadCookies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	data := `[
		{"name": "auth_token", "value": "secret", "domain": ".x.com", "path": "/"},
		{"name": "ct0", "value": "csrf"}
	]`
	assert.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cookies := LoadCookies(path)
	assert.Len(t, cookies, 2)
	assert.Equal(t, "auth_token", cookies[0].Name)

	// Missing domain and path get the session defaults.
	assert.Equal(t, ".x.com", cookies[1].Domain)
	assert.Equal(t, "/", cookies[1].Path)
}

func TestLoadCookies_MissingFile(t *testing.T) {
	cookies := LoadCookies(filepath.Join(t.TempDir(), "nope.json"))
	assert.Nil(t, cookies)
}

func TestLoadCookies_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	assert.NoError(t, os.WriteFile(path, []byte("not json"), 0600))
	assert.Nil(t, LoadCookies(path))
}
