package openaichat

// CompatibleEntry describes one OpenAI-compatible back-end: its Chat
// Completions base URL and the environment variable its API key is
// conventionally read from.
type CompatibleEntry struct {
	BaseURL   string
	APIKeyEnv string
}

// CompatibleProviders is a static registry of well-known back-ends that
// speak the OpenAI Chat Completions wire dialect unchanged, differing only
// by base URL and API key. It exists so callers can select one by name
// instead of hardcoding base URLs throughout an application; it is never
// consulted by the adapter itself for correctness.
var CompatibleProviders = map[string]CompatibleEntry{
	"openai": {
		BaseURL:   "https://api.openai.com/v1",
		APIKeyEnv: "OPENAI_API_KEY",
	},
	"groq": {
		BaseURL:   "https://api.groq.com/openai/v1",
		APIKeyEnv: "GROQ_API_KEY",
	},
	"deepseek": {
		BaseURL:   "https://api.deepseek.com/v1",
		APIKeyEnv: "DEEPSEEK_API_KEY",
	},
	"together": {
		BaseURL:   "https://api.together.xyz/v1",
		APIKeyEnv: "TOGETHER_API_KEY",
	},
	"openrouter": {
		BaseURL:   "https://openrouter.ai/api/v1",
		APIKeyEnv: "OPENROUTER_API_KEY",
	},
	"vercel-ai-gateway": {
		BaseURL:   "https://ai-gateway.vercel.sh/v1",
		APIKeyEnv: "AI_GATEWAY_API_KEY",
	},
	"xai": {
		BaseURL:   "https://api.x.ai/v1",
		APIKeyEnv: "XAI_API_KEY",
	},
	"fireworks": {
		BaseURL:   "https://api.fireworks.ai/inference/v1",
		APIKeyEnv: "FIREWORKS_API_KEY",
	},
	"mistral": {
		BaseURL:   "https://api.mistral.ai/v1",
		APIKeyEnv: "MISTRAL_API_KEY",
	},
	"ollama": {
		BaseURL:   "http://localhost:11434/v1",
		APIKeyEnv: "",
	},
}
