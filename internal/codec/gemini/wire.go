// Package gemini translates between the canonical IR and Google's native
// generateContent/streamGenerateContent wire format, and is also used to
// talk to an upstream configured with provider: gemini.
package gemini

import "encoding/json"

type wireRequest struct {
	Contents          []wireContent      `json:"contents"`
	SystemInstruction *wireContent       `json:"systemInstruction,omitempty"`
	GenerationConfig  *wireGenConfig     `json:"generationConfig,omitempty"`
	Tools             []wireTool         `json:"tools,omitempty"`
	ToolConfig        *wireToolConfig    `json:"toolConfig,omitempty"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

// wirePart folds every Gemini part shape into one struct; only the field
// for the part actually present is populated.
type wirePart struct {
	Text             string              `json:"text,omitempty"`
	FunctionCall     *wireFunctionCall   `json:"functionCall,omitempty"`
	FunctionResponse *wireFunctionResp   `json:"functionResponse,omitempty"`
	InlineData       *wireInlineData     `json:"inlineData,omitempty"`
	FileData         *wireFileData       `json:"fileData,omitempty"`
}

type wireFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type wireFunctionResp struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response,omitempty"`
}

type wireInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wireFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type wireGenConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens *int64   `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type wireTool struct {
	FunctionDeclarations []wireFunctionDecl `json:"functionDeclarations,omitempty"`
}

type wireFunctionDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type wireToolConfig struct {
	FunctionCallingConfig wireFunctionCallingConfig `json:"functionCallingConfig"`
}

type wireFunctionCallingConfig struct {
	Mode                 string   `json:"mode,omitempty"`
	AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
}

type wireResponse struct {
	Candidates    []wireCandidate   `json:"candidates"`
	UsageMetadata *wireUsage        `json:"usageMetadata,omitempty"`
}

type wireCandidate struct {
	Content      wireContent `json:"content"`
	FinishReason string      `json:"finishReason"`
	Index        int         `json:"index"`
}

// wireErrorEnvelope is the Gemini error shape:
// {"error":{"code","message","status"}}.
type wireErrorEnvelope struct {
	Error wireErrorBody `json:"error"`
}

type wireErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type wireUsage struct {
	PromptTokenCount     int64 `json:"promptTokenCount"`
	CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	TotalTokenCount      int64 `json:"totalTokenCount"`
	CachedContentTokenCount int64 `json:"cachedContentTokenCount,omitempty"`
	ThoughtsTokenCount   int64 `json:"thoughtsTokenCount,omitempty"`
}
