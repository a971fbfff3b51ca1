package llmclient

import (
	"net/http"
	"os"
	"strings"
)

// OpenRouterProvider targets OpenRouter's OpenAI-compatible chat completions
// API, the configured provider for OPENROUTER_API_KEY per the external
// interfaces this client serves.
type OpenRouterProvider struct{}

func init() { RegisterProvider(&OpenRouterProvider{}) }

func (o *OpenRouterProvider) Name() string { return "openrouter" }

func (o *OpenRouterProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

func (o *OpenRouterProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("OPENROUTER_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if site := os.Getenv("OPENROUTER_SITE_URL"); site != "" {
		req.Header.Set("HTTP-Referer", site)
	}
	if name := os.Getenv("OPENROUTER_SITE_NAME"); name != "" {
		req.Header.Set("X-Title", name)
	}
}

// generationDetailsURL is the OpenRouter endpoint used for the post-hoc cost
// lookup when usage.cost is absent from the primary chat completion
// response.
func (o *OpenRouterProvider) generationDetailsURL(baseURL, generationID string) string {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/chat/completions")
	return baseURL + "/generation?id=" + generationID
}

// OpenAIProvider targets the plain OpenAI API for OPENAI_API_KEY deployments
// and for any OpenAI-compatible gateway reachable at a configured base URL
// (self-hosted vLLM, Ollama, etc.).
type OpenAIProvider struct{}

func init() { RegisterProvider(&OpenAIProvider{}) }

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

func (o *OpenAIProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}
