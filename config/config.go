// Package config implements the external configuration surface (spec §6.1):
// per-provider base URL / API key / path override, loaded from environment
// variables (with optional .env support) or decoded from a static YAML
// document, the way the teacher's config layer loads and validates
// AgentConfig.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cortexflow/llmkit/llmerr"
)

// ProviderConfig is the per-provider connection configuration a caller
// assembles before constructing a provider adapter client.
type ProviderConfig struct {
	// Name is cosmetic; it identifies the provider in logs and error
	// messages but is never interpreted.
	Name string `yaml:"name"`

	// BaseURL must be an http(s) URL with a non-empty host.
	BaseURL string `yaml:"base_url"`

	// APIKey must be non-empty once Resolve has run; it is read from
	// APIKeyEnv when left blank in the document.
	APIKey string `yaml:"api_key"`

	// APIKeyEnv is the environment variable Resolve reads APIKey from when
	// APIKey is empty, e.g. "OPENAI_API_KEY".
	APIKeyEnv string `yaml:"api_key_env"`

	// Path overrides the default request path for non-standard routes
	// (compatible back-ends that mount the API under a different prefix).
	Path string `yaml:"path,omitempty"`
}

// Resolve fills APIKey from APIKeyEnv when unset and validates the result.
// It mutates a copy, never the receiver.
func (c ProviderConfig) Resolve() (ProviderConfig, error) {
	out := c
	if out.APIKey == "" && out.APIKeyEnv != "" {
		out.APIKey = os.Getenv(out.APIKeyEnv)
	}
	if err := out.Validate(); err != nil {
		return ProviderConfig{}, err
	}
	return out, nil
}

// Validate checks BaseURL's scheme/host and that APIKey was ultimately
// populated, per spec §6.1.
func (c ProviderConfig) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return llmerr.New(llmerr.InvalidInput, "config: base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return llmerr.Wrap(llmerr.InvalidInput, "config: base_url is not a valid URL", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return llmerr.Newf(llmerr.InvalidInput, "config: base_url scheme %q must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return llmerr.New(llmerr.InvalidInput, "config: base_url must include a host")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return llmerr.New(llmerr.InvalidInput, "config: api_key is required (set it directly or via api_key_env)")
	}
	return nil
}

// Document is the top-level shape of a static YAML configuration file: a
// named set of provider configurations. It carries no model catalogue
// entries.
type Document struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// LoadDotEnv loads a .env file into the process environment for local
// development, matching the teacher's main.go convention of loading it once
// at startup and returning nil, not failing, when the file is absent.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return llmerr.Wrap(llmerr.InvalidInput, fmt.Sprintf("config: loading %s", path), err)
	}
	return nil
}

// Load reads a YAML configuration document from path and resolves every
// provider's API key against its environment variable.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, llmerr.Wrap(llmerr.InvalidInput, fmt.Sprintf("config: reading %s", path), err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, llmerr.Wrap(llmerr.InvalidInput, fmt.Sprintf("config: parsing %s", path), err)
	}
	for name, pc := range doc.Providers {
		resolved, err := pc.Resolve()
		if err != nil {
			return nil, llmerr.Wrap(llmerr.InvalidInput, fmt.Sprintf("config: provider %q", name), err)
		}
		doc.Providers[name] = resolved
	}
	return &doc, nil
}

// RequestURL joins BaseURL and Path (when set), trimming the duplicate
// slash at the seam. Adapters that accept a base URL construction option
// use this instead of string concatenation.
func (c ProviderConfig) RequestURL() string {
	if c.Path == "" {
		return c.BaseURL
	}
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(c.Path, "/")
}
