package pipeline

import (
	"github.com/nexusgate/llm-gateway/internal/ir"
	"github.com/nexusgate/llm-gateway/internal/router"
)

// upstreamPath builds the provider-native request path appended to the
// upstream's configured base_url. Gemini
// embeds both the model and the streaming/non-streaming action in the path
// rather than the body.
func upstreamPath(u router.Upstream, model string, stream bool) string {
	switch u.Provider {
	case ir.ProviderOpenAIResponses:
		return "/responses"
	case ir.ProviderAnthropic:
		return "/v1/messages"
	case ir.ProviderGemini:
		action := "generateContent"
		suffix := ""
		if stream {
			action = "streamGenerateContent"
			suffix = "?alt=sse"
		}
		return "/v1beta/models/" + model + ":" + action + suffix
	default: // openai, gemini_openai
		return "/chat/completions"
	}
}

const defaultAnthropicVersion = "2023-06-01"

// upstreamHeaders builds the provider-native auth headers for one outbound
// request.
func upstreamHeaders(u router.Upstream) map[string]string {
	switch u.Provider {
	case ir.ProviderAnthropic:
		version := u.APIVersion
		if version == "" {
			version = defaultAnthropicVersion
		}
		return map[string]string{
			"x-api-key":         u.APIKey,
			"anthropic-version": version,
		}
	case ir.ProviderGemini:
		return map[string]string{"x-goog-api-key": u.APIKey}
	default: // openai, openai_responses, gemini_openai
		return map[string]string{"Authorization": "Bearer " + u.APIKey}
	}
}
