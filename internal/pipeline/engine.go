package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nexusgate/llm-gateway/internal/apperrors"
	"github.com/nexusgate/llm-gateway/internal/config"
	"github.com/nexusgate/llm-gateway/internal/functioncall"
	"github.com/nexusgate/llm-gateway/internal/gateway"
	"github.com/nexusgate/llm-gateway/internal/httpclient"
	"github.com/nexusgate/llm-gateway/internal/ir"
	"github.com/nexusgate/llm-gateway/internal/jsonutil"
	"github.com/nexusgate/llm-gateway/internal/router"
	"github.com/nexusgate/llm-gateway/internal/sse"
	"github.com/nexusgate/llm-gateway/internal/telemetry"
	"github.com/nexusgate/llm-gateway/internal/transcoder"
)

// StreamSink is how Engine writes an SSE response incrementally; the
// server package implements it over an http.ResponseWriter/http.Flusher
// pair.
type StreamSink interface {
	// Start commits the response status and SSE headers. Called at most
	// once, immediately before the first frame is written.
	Start(status int)
	WriteEvent(eventType string, data []byte)
	Flush()
}

// Request is one inbound call to Engine.Serve.
type Request struct {
	Ingress      ir.IngressAPI
	Header       http.Header
	Body         []byte
	URLModel     string // Gemini only: model from the URL path
	URLStream    bool   // Gemini only: generateContent vs streamGenerateContent
	SessionClass router.SessionClass
}

// Result is Engine.Serve's outcome. When Streamed is true, the response
// was already written through the caller's StreamSink and Status/Body are
// unused; the caller has nothing left to do.
type Result struct {
	Streamed    bool
	Status      int
	ContentType string
	Body        []byte
}

// Engine drives one request's candidate loop against an AppState: auth,
// probe, route, then per-candidate encode/dispatch/decode, synthetic
// function-calling, and failover.
type Engine struct {
	State *gateway.AppState
}

// New builds an Engine bound to a process-wide AppState.
func New(state *gateway.AppState) *Engine {
	return &Engine{State: state}
}

// Serve handles one HTTP request end to end. sink is consulted only once
// the engine has committed to streaming a response to the client; it may
// be nil for a request whose probe/auth/routing fails before that point.
func (e *Engine) Serve(ctx context.Context, req Request, sink StreamSink) Result {
	clientKey, authErr := Authenticate(req.Ingress, req.Header, e.State.Allowed)
	if authErr != nil {
		return e.errorResult(req.Ingress, authErr)
	}

	probe, err := jsonutil.ScanProbe(req.Body)
	if err != nil {
		return e.errorResult(req.Ingress, apperrors.InvalidRequest("malformed request body", err))
	}

	model := probe.Model
	stream := probe.Stream
	if req.Ingress == ir.IngressGemini {
		// Gemini's wire body carries neither; both come from the URL.
		model = req.URLModel
		stream = req.URLStream
	}
	if model == "" {
		return e.errorResult(req.Ingress, apperrors.InvalidRequest("model is required", nil))
	}

	bodyPrefix := req.Body
	if len(bodyPrefix) > 256 {
		bodyPrefix = bodyPrefix[:256]
	}
	ctx, reqSpan := telemetry.StartPipelineSpan(ctx, e.State.Telemetry, "request", "", model)
	defer reqSpan.End()

	hash := router.StickyHash(clientKey, req.Ingress, model, bodyPrefix)
	candidates := e.State.Router.Resolve(model, hash, req.SessionClass)
	if len(candidates) == 0 {
		return e.errorResult(req.Ingress, apperrors.InvalidRequest("no upstream configured for model "+model, nil))
	}

	canonical, err := decodeIngressRequest(req.Ingress, req.Body, req.URLModel, stream)
	if err != nil {
		kindErr, ok := apperrors.As(err)
		if !ok {
			kindErr = apperrors.InvalidRequest("decode request", err)
		}
		return e.errorResult(req.Ingress, kindErr)
	}
	canonical.RequestID = jsonutil.NewRequestID()
	canonical.Stream = stream

	var lastErr *apperrors.Error
	for _, cand := range candidates {
		upstream := e.State.Upstreams[cand.UpstreamIndex]
		attempt := canonical
		attempt.Model = cand.ActualModel

		if stream {
			sent, sErr := e.attemptStream(ctx, upstream, cand, attempt, req.Ingress, sink)
			if sErr == nil || sent {
				return Result{Streamed: true}
			}
			lastErr = sErr
		} else {
			resp, rErr := e.attemptNonStreamWithRetry(ctx, upstream, cand, attempt)
			if rErr == nil {
				body, encErr := encodeIngressResponse(req.Ingress, resp)
				if encErr != nil {
					return e.errorResult(req.Ingress, apperrors.Internal("encode response", encErr))
				}
				return Result{Status: http.StatusOK, ContentType: contentTypeFor(req.Ingress), Body: body}
			}
			lastErr = rErr
		}

		if lastErr.TripsBreaker() {
			e.State.Router.Breaker().RecordFailure(cand.UpstreamIndex, cand.ActualModel)
		}
		if !lastErr.Retryable() {
			return e.errorResult(req.Ingress, lastErr)
		}
	}

	return e.errorResult(req.Ingress, lastErr)
}

// attemptNonStreamWithRetry wraps attemptNonStream with the
// "auto-inject fallback": when a native-tool-calling upstream rejects a
// tools-bearing request (heuristically, any 4xx upstream error; the
// gateway cannot inspect the upstream's own error taxonomy any closer than
// that) and features.enable_fc_error_retry is set, retry the *same*
// upstream once with the synthetic function-call prompt layer applied
// instead of advancing to the next candidate.
func (e *Engine) attemptNonStreamWithRetry(ctx context.Context, upstream router.Upstream, cand router.RouteTarget, req ir.Request) (ir.Response, *apperrors.Error) {
	resp, err := e.attemptNonStream(ctx, upstream, cand, req, false)
	if err == nil {
		return resp, nil
	}
	if !e.eligibleForAutoInjectRetry(upstream, req, err) {
		return resp, err
	}
	return e.attemptNonStream(ctx, upstream, cand, req, true)
}

func (e *Engine) eligibleForAutoInjectRetry(upstream router.Upstream, req ir.Request, err *apperrors.Error) bool {
	if !e.State.Config.Features.EnableFCErrorRetry {
		return false
	}
	if upstream.FCMode != config.FCModeNative || len(req.Tools) == 0 {
		return false
	}
	return err.Kind == apperrors.KindUpstream && err.Status >= 400 && err.Status < 500
}

// attemptNonStream sends one non-streaming request to one candidate.
// forceInject applies the synthetic function-call prompt layer even on a
// Native-mode upstream, for the auto-inject-retry path; otherwise injection
// only happens when the upstream is itself configured FCModePrompt.
func (e *Engine) attemptNonStream(ctx context.Context, upstream router.Upstream, cand router.RouteTarget, req ir.Request, forceInject bool) (ir.Response, *apperrors.Error) {
	ctx, span := telemetry.StartPipelineSpan(ctx, e.State.Telemetry, "encode_dispatch", upstream.Name, cand.ActualModel)
	defer span.End()

	active := false
	if (upstream.FCMode == config.FCModePrompt || forceInject) && len(req.Tools) > 0 {
		inj := functioncall.Inject(req)
		req = inj.Request
		active = inj.Injected
	}

	wireBody, err := providerEncodeRequest(upstream.Provider, req)
	if err != nil {
		return ir.Response{}, apperrors.Translation("encode upstream request", err)
	}

	client := e.State.Clients[cand.UpstreamIndex]
	httpResp, err := client.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    upstreamPath(upstream, cand.ActualModel, false),
		Headers: upstreamHeaders(upstream),
		Body:    wireBody,
	})
	if err != nil {
		return ir.Response{}, apperrors.Transport("upstream dispatch failed", err)
	}
	if httpResp.StatusCode >= 300 {
		return ir.Response{}, apperrors.Upstream(httpResp.StatusCode, "upstream returned non-2xx", fmt.Errorf("%s", string(httpResp.Body)))
	}

	resp, err := providerDecodeResponse(upstream.Provider, httpResp.Body)
	if err != nil {
		return ir.Response{}, apperrors.Translation("decode upstream response", err)
	}

	if active {
		resp = reshapeNonStreamResponse(resp)
	}

	e.State.Router.Breaker().RecordSuccess(cand.UpstreamIndex, cand.ActualModel)
	return resp, nil
}

// attemptStream sends one streaming request to one candidate, piping the
// upstream's SSE frames through the transcoder (and, for prompt-mode
// upstreams, the synthetic function-call streaming detector) straight to
// sink. It returns sent=true once the response status has been committed
// to the client: a mid-flight error after that point is
// surfaced as an in-band SSE error frame, never retried on another
// candidate.
func (e *Engine) attemptStream(ctx context.Context, upstream router.Upstream, cand router.RouteTarget, req ir.Request, ingress ir.IngressAPI, sink StreamSink) (sent bool, outErr *apperrors.Error) {
	ctx, span := telemetry.StartPipelineSpan(ctx, e.State.Telemetry, "stream_dispatch", upstream.Name, cand.ActualModel)
	defer span.End()

	active := false
	if upstream.FCMode == config.FCModePrompt && len(req.Tools) > 0 {
		inj := functioncall.Inject(req)
		req = inj.Request
		active = inj.Injected
	}

	wireBody, err := providerEncodeRequest(upstream.Provider, req)
	if err != nil {
		return false, apperrors.Translation("encode upstream request", err)
	}

	client := e.State.StreamClients[cand.UpstreamIndex]
	httpResp, err := client.DoStream(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    upstreamPath(upstream, cand.ActualModel, true),
		Headers: upstreamHeaders(upstream),
		Body:    wireBody,
	})
	if err != nil {
		return false, apperrors.Transport("upstream stream dispatch failed", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 300 {
		b, _ := io.ReadAll(httpResp.Body)
		return false, apperrors.Upstream(httpResp.StatusCode, "upstream returned non-2xx", fmt.Errorf("%s", string(b)))
	}

	var reshape func([]ir.StreamEvent) []ir.StreamEvent
	if active {
		reshape = reshapeStreamEvents(functioncall.NewDetector())
	}

	tc, err := transcoder.New(transcoder.Config{
		ProviderKind:  upstream.Provider,
		IngressAPI:    ingress,
		UpstreamModel: cand.ActualModel,
		UpstreamID:    upstream.Name,
		ResponseID:    jsonutil.NewResponseID(),
		Created:       time.Now().Unix(),
		Reshape:       reshape,
	})
	if err != nil {
		return false, apperrors.Internal("build transcoder", err)
	}

	sink.Start(http.StatusOK)
	reader := sse.NewReader(httpResp.Body)
	for {
		frame, readErr := reader.Next()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			e.writeStreamError(sink, ingress, http.StatusBadGateway, "stream read failed: "+readErr.Error())
			return true, nil
		}

		frames, decErr := tc.TranscodeFrame(*frame)
		if decErr != nil {
			e.writeStreamError(sink, ingress, http.StatusBadGateway, "stream decode failed: "+decErr.Error())
			return true, nil
		}
		for _, f := range frames {
			sink.WriteEvent(f.Event, f.Data)
		}
		sink.Flush()
	}

	for _, f := range tc.Terminal() {
		sink.WriteEvent(f.Event, f.Data)
	}
	sink.Flush()

	e.State.Router.Breaker().RecordSuccess(cand.UpstreamIndex, cand.ActualModel)
	return true, nil
}

// writeStreamError emits the ingress dialect's error SSE frame followed by
// its terminal marker.
func (e *Engine) writeStreamError(sink StreamSink, ingress ir.IngressAPI, status int, message string) {
	body := encodeIngressError(ingress, status, string(apperrors.KindUpstream), message)
	if ingress == ir.IngressAnthropic {
		sink.WriteEvent("error", body)
		sink.WriteEvent("message_stop", []byte(`{"type":"message_stop"}`))
	} else {
		sink.WriteEvent("", body)
		sink.WriteEvent("", []byte("[DONE]"))
	}
	sink.Flush()
}

func (e *Engine) errorResult(ingress ir.IngressAPI, err *apperrors.Error) Result {
	if err == nil {
		err = apperrors.Internal("unknown pipeline error", nil)
	}
	status := err.HTTPStatus()
	body := encodeIngressError(ingress, status, string(err.Kind), err.Message)
	return Result{Status: status, ContentType: contentTypeFor(ingress), Body: body}
}
