// Package server wires the HTTP ingress routes to an
// internal/pipeline.Engine using gin.
package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nexusgate/llm-gateway/internal/ir"
	"github.com/nexusgate/llm-gateway/internal/logging"
	"github.com/nexusgate/llm-gateway/internal/pipeline"
	"github.com/nexusgate/llm-gateway/internal/router"
)

// maxRequestBodyBytes caps an ingress request body; a well-formed chat
// request is a few KB to a few hundred KB even with large tool schemas.
const maxRequestBodyBytes = 20 << 20

// New builds the gin engine serving every ingress route under basePath,
// dispatching each one to eng.Serve.
func New(eng *pipeline.Engine, basePath string, log *logging.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	g := r.Group(basePath)
	g.POST("/v1/chat/completions", handler(eng, ir.IngressOpenAIChat))
	g.POST("/v1/responses", handler(eng, ir.IngressOpenAIResponses))
	g.POST("/v1/messages", handler(eng, ir.IngressAnthropic))
	g.POST("/v1beta/models/*modelAction", geminiHandler(eng))

	return r
}

func requestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug("%s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}

// sessionClassOf reads an optional client-supplied session-affinity hint
// (the `X-Session-Class` header, which no dialect's own wire format
// carries; degrades to Portable, the safer default, when unset or
// unrecognized).
func sessionClassOf(header http.Header) router.SessionClass {
	if strings.EqualFold(header.Get("X-Session-Class"), "anchored") {
		return router.Anchored
	}
	return router.Portable
}

func handler(eng *pipeline.Engine, ingress ir.IngressAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBodyBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		if len(body) > maxRequestBodyBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}

		serve(c, eng, pipeline.Request{
			Ingress:      ingress,
			Header:       c.Request.Header,
			Body:         body,
			SessionClass: sessionClassOf(c.Request.Header),
		})
	}
}

// geminiHandler parses `/v1beta/models/{model}:generateContent` and
// `/v1beta/models/{model}:streamGenerateContent` out of gin's wildcard
// capture, since colons aren't a gin path-param delimiter.
func geminiHandler(eng *pipeline.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		rest := strings.TrimPrefix(c.Param("modelAction"), "/")
		model, action, ok := strings.Cut(rest, ":")
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": map[string]any{"code": 404, "message": "unknown Gemini route", "status": "NOT_FOUND"}})
			return
		}

		var stream bool
		switch action {
		case "generateContent":
			stream = false
		case "streamGenerateContent":
			stream = true
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": map[string]any{"code": 404, "message": "unknown Gemini action " + action, "status": "NOT_FOUND"}})
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBodyBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": map[string]any{"code": 400, "message": "failed to read request body", "status": "INVALID_ARGUMENT"}})
			return
		}

		serve(c, eng, pipeline.Request{
			Ingress:      ir.IngressGemini,
			Header:       c.Request.Header,
			Body:         body,
			URLModel:     model,
			URLStream:    stream,
			SessionClass: sessionClassOf(c.Request.Header),
		})
	}
}

// serve runs the shared probe/route/dispatch path for every ingress
// handler, streaming through a ginSink when the engine commits to an SSE
// response and writing a single JSON body otherwise.
func serve(c *gin.Context, eng *pipeline.Engine, req pipeline.Request) {
	sink := &ginSink{c: c}
	result := eng.Serve(c.Request.Context(), req, sink)
	if result.Streamed {
		return
	}
	c.Data(result.Status, result.ContentType, result.Body)
}

// ginSink adapts gin's ResponseWriter to pipeline.StreamSink.
type ginSink struct {
	c       *gin.Context
	started bool
}

func (s *ginSink) Start(status int) {
	if s.started {
		return
	}
	s.started = true
	s.c.Writer.Header().Set("Content-Type", "text/event-stream")
	s.c.Writer.Header().Set("Cache-Control", "no-cache")
	s.c.Writer.Header().Set("Connection", "keep-alive")
	s.c.Writer.WriteHeader(status)
}

func (s *ginSink) WriteEvent(eventType string, data []byte) {
	w := s.c.Writer
	if eventType != "" {
		_, _ = io.WriteString(w, "event: "+eventType+"\n")
	}
	for _, line := range strings.Split(string(data), "\n") {
		_, _ = io.WriteString(w, "data: "+line+"\n")
	}
	_, _ = io.WriteString(w, "\n")
}

func (s *ginSink) Flush() {
	s.c.Writer.Flush()
}
