package pipeline

import (
	"net/http"
	"strings"

	"github.com/nexusgate/llm-gateway/internal/apperrors"
	"github.com/nexusgate/llm-gateway/internal/ir"
	"github.com/nexusgate/llm-gateway/internal/jsonutil"
)

// ExtractClientKey reads the client-supplied API key out of the request
// headers, per the per-dialect convention: Anthropic clients send
// x-api-key, Gemini clients send x-goog-api-key, both fall back to a bearer
// Authorization header like the OpenAI dialects always use.
func ExtractClientKey(ingress ir.IngressAPI, header http.Header) string {
	switch ingress {
	case ir.IngressAnthropic:
		if k := header.Get("x-api-key"); k != "" {
			return k
		}
	case ir.IngressGemini:
		if k := header.Get("x-goog-api-key"); k != "" {
			return k
		}
	}
	return bearerToken(header.Get("Authorization"))
}

func bearerToken(h string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(h, prefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, prefix))
	}
	return ""
}

// Authenticate checks the extracted client key against the configured
// allow-list, returning it for use in the request's
// sticky-hash seed.
func Authenticate(ingress ir.IngressAPI, header http.Header, allowed jsonutil.AllowedKeySet) (string, *apperrors.Error) {
	key := ExtractClientKey(ingress, header)
	if !allowed.Allowed(key) {
		return "", apperrors.Auth("missing or invalid API key")
	}
	return key, nil
}
