package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveReadsAPIKeyFromEnv(t *testing.T) {
	t.Setenv("TEST_PROVIDER_KEY", "sk-test-123")
	cfg := ProviderConfig{Name: "test", BaseURL: "https://api.example.com/v1", APIKeyEnv: "TEST_PROVIDER_KEY"}
	resolved, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", resolved.APIKey)
}

func TestValidateRejectsNonHTTPScheme(t *testing.T) {
	cfg := ProviderConfig{BaseURL: "ftp://example.com", APIKey: "x"}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMissingAPIKey(t *testing.T) {
	cfg := ProviderConfig{BaseURL: "https://example.com"}
	assert.Error(t, cfg.Validate())
}

func TestRequestURLJoinsPathWithoutDoubleSlash(t *testing.T) {
	cfg := ProviderConfig{BaseURL: "https://example.com/v1/", Path: "/custom/chat"}
	assert.Equal(t, "https://example.com/v1/custom/chat", cfg.RequestURL())
}

func TestLoadParsesProvidersAndResolvesKeys(t *testing.T) {
	t.Setenv("LOAD_TEST_KEY", "sk-load-test")
	dir := t.TempDir()
	path := dir + "/config.yaml"
	yamlDoc := "providers:\n  openai:\n    base_url: https://api.openai.com/v1\n    api_key_env: LOAD_TEST_KEY\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	require.Contains(t, doc.Providers, "openai")
	assert.Equal(t, "sk-load-test", doc.Providers["openai"].APIKey)
}
