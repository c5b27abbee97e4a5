package pipeline

import (
	"fmt"

	"github.com/nexusgate/llm-gateway/internal/codec/anthropic"
	"github.com/nexusgate/llm-gateway/internal/codec/gemini"
	"github.com/nexusgate/llm-gateway/internal/codec/openaichat"
	"github.com/nexusgate/llm-gateway/internal/codec/openairesponses"
	"github.com/nexusgate/llm-gateway/internal/ir"
)

// decodeIngressRequest parses a client request body into the canonical IR,
// dispatching on which ingress route it arrived on. urlModel
// and urlStream are only consulted for Gemini, whose body carries neither.
func decodeIngressRequest(ingress ir.IngressAPI, body []byte, urlModel string, urlStream bool) (ir.Request, error) {
	switch ingress {
	case ir.IngressOpenAIChat:
		return openaichat.DecodeRequest(body)
	case ir.IngressOpenAIResponses:
		return openairesponses.DecodeRequest(body)
	case ir.IngressAnthropic:
		return anthropic.DecodeRequest(body)
	case ir.IngressGemini:
		return gemini.DecodeRequest(body, urlModel, urlStream)
	default:
		return ir.Request{}, fmt.Errorf("pipeline: unknown ingress api %q", ingress)
	}
}

// encodeIngressResponse renders a canonical Response as the ingress
// dialect's non-streaming wire body.
func encodeIngressResponse(ingress ir.IngressAPI, resp ir.Response) ([]byte, error) {
	switch ingress {
	case ir.IngressOpenAIChat:
		return openaichat.EncodeResponse(resp)
	case ir.IngressOpenAIResponses:
		return openairesponses.EncodeResponse(resp)
	case ir.IngressAnthropic:
		return anthropic.EncodeResponse(resp)
	case ir.IngressGemini:
		return gemini.EncodeResponse(resp)
	default:
		return nil, fmt.Errorf("pipeline: unknown ingress api %q", ingress)
	}
}

// encodeIngressError renders a failure in the ingress dialect's documented
// error shape.
func encodeIngressError(ingress ir.IngressAPI, status int, kind, message string) []byte {
	switch ingress {
	case ir.IngressOpenAIChat:
		return openaichat.EncodeError(kind, message)
	case ir.IngressOpenAIResponses:
		return openairesponses.EncodeError(kind, message)
	case ir.IngressAnthropic:
		return anthropic.EncodeError(kind, message)
	case ir.IngressGemini:
		return gemini.EncodeError(status, message, geminiStatusName(status))
	default:
		return openaichat.EncodeError(kind, message)
	}
}

func geminiStatusName(status int) string {
	switch {
	case status == 400:
		return "INVALID_ARGUMENT"
	case status == 401:
		return "UNAUTHENTICATED"
	case status == 404:
		return "NOT_FOUND"
	case status == 429:
		return "RESOURCE_EXHAUSTED"
	case status >= 500:
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// contentTypeFor returns the non-streaming response Content-Type for an
// ingress dialect. All four speak plain JSON; only the streaming routes use
// text/event-stream.
func contentTypeFor(ir.IngressAPI) string {
	return "application/json"
}

// providerEncodeRequest renders the canonical IR as the upstream provider's
// request body. gemini_openai shares
// openaichat's wire shape, since it is Gemini's own OpenAI-compatibility
// endpoint.
func providerEncodeRequest(kind ir.ProviderKind, req ir.Request) ([]byte, error) {
	switch kind {
	case ir.ProviderOpenAI, ir.ProviderGeminiOpenAI:
		return openaichat.EncodeRequest(req)
	case ir.ProviderAnthropic:
		return anthropic.EncodeRequest(req)
	case ir.ProviderGemini:
		return gemini.EncodeRequest(req)
	case ir.ProviderOpenAIResponses:
		return openairesponses.EncodeRequest(req)
	default:
		return nil, fmt.Errorf("pipeline: unknown provider kind %q", kind)
	}
}

// providerDecodeResponse parses a non-streaming upstream response body into
// the canonical Response.
func providerDecodeResponse(kind ir.ProviderKind, body []byte) (ir.Response, error) {
	switch kind {
	case ir.ProviderOpenAI, ir.ProviderGeminiOpenAI:
		return openaichat.DecodeResponse(body)
	case ir.ProviderAnthropic:
		return anthropic.DecodeResponse(body)
	case ir.ProviderGemini:
		return gemini.DecodeResponse(body)
	case ir.ProviderOpenAIResponses:
		return openairesponses.DecodeResponse(body)
	default:
		return ir.Response{}, fmt.Errorf("pipeline: unknown provider kind %q", kind)
	}
}
