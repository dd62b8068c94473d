package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, int64(10*1024*1024), cfg.Memos.MaxFileSizeBytes)
	assert.Equal(t, 30*time.Minute, cfg.Memos.SignedURLTTL)
	assert.True(t, cfg.Memos.RetryOnConflict)
	assert.Contains(t, cfg.Memos.AllowedMIMEs, "application/pdf")
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("MEMO_SIGNED_URL_TTL", "not-a-duration")
	v.Set("MEMO_MAX_FILE_SIZE", 0)
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := fromViper(v)
	assert.Equal(t, 30*time.Minute, cfg.Memos.SignedURLTTL)
	assert.Equal(t, int64(10*1024*1024), cfg.Memos.MaxFileSizeBytes)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestParseTemplateCatalog(t *testing.T) {
	catalog, err := ParseTemplateCatalog([]byte("default: plain\ntemplates:\n  instructional: circular\n"))
	require.NoError(t, err)
	assert.Equal(t, "circular", catalog.Lookup("INSTRUCTIONAL"))
	assert.Equal(t, "memo-informational", catalog.Lookup("INFORMATIONAL"))
	assert.Equal(t, "plain", catalog.Lookup("UNKNOWN"))
}

func TestParseTemplateCatalogInvalid(t *testing.T) {
	_, err := ParseTemplateCatalog([]byte("templates: [unclosed"))
	require.Error(t, err)
}

func TestLoadTemplateCatalogEmptyPath(t *testing.T) {
	catalog, err := LoadTemplateCatalog("")
	require.NoError(t, err)
	assert.Equal(t, "memo-general", catalog.Lookup("GENERAL"))
}
