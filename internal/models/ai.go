// internal/models/ai.go
package models

import (
	"encoding/json"
	"regexp"
	"strings"
)

// TransformAction 选区变换动作
type TransformAction string

const (
	ActionExpand    TransformAction = "expand"
	ActionSummarize TransformAction = "summarize"
	ActionRephrase  TransformAction = "rephrase"
	ActionRevise    TransformAction = "revise"
)

// TransformActions 全部可用动作，按界面展示顺序
var TransformActions = []TransformAction{ActionExpand, ActionSummarize, ActionRephrase, ActionRevise}

// Valid 是否为受支持的动作
func (a TransformAction) Valid() bool {
	switch a {
	case ActionExpand, ActionSummarize, ActionRephrase, ActionRevise:
		return true
	}
	return false
}

// TransformationRequest 选区变换请求
type TransformationRequest struct {
	Text                   string          `json:"text"`
	Action                 TransformAction `json:"action"`
	AdditionalInstructions string          `json:"additionalInstructions,omitempty"`
	FullDocument           string          `json:"fullDocument,omitempty"`
}

// TransformationResponse 选区变换响应
type TransformationResponse struct {
	Success         bool   `json:"success"`
	TransformedText string `json:"transformedText"`
}

// ContentKind 生成内容类别
type ContentKind string

const (
	ContentNote ContentKind = "note"
	ContentBeat ContentKind = "beat"
	ContentText ContentKind = "text"
)

// Valid 是否为受支持的内容类别
func (k ContentKind) Valid() bool {
	return k == ContentNote || k == ContentBeat || k == ContentText
}

// Structured note和beat的生成结果带标题
func (k ContentKind) Structured() bool {
	return k == ContentNote || k == ContentBeat
}

// GenerationRequest 内容生成请求
type GenerationRequest struct {
	Type           ContentKind `json:"type"`
	ChapterID      string      `json:"chapterId"`
	ProjectID      string      `json:"projectId"`
	CurrentContent string      `json:"currentContent"`
}

// GenerationResponse 内容生成响应
type GenerationResponse struct {
	GeneratedContent string `json:"generatedContent"`
}

// GeneratedContent 解析后的标题+正文
type GeneratedContent struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

var labeledContentPattern = regexp.MustCompile(`(?is)TITLE:\s*(.*?)\s*CONTENT:\s*(.*)`)

// ParseGeneratedContent reads a note/beat generation result.
// It tries a JSON object {title, content} first (optionally fenced), then the
// TITLE:/CONTENT: labeled format. ok is false when neither matched; the trimmed
// raw string is returned as Content in that case.
func ParseGeneratedContent(raw string) (GeneratedContent, bool) {
	trimmed := StripCodeFence(raw)

	var gc GeneratedContent
	if err := json.Unmarshal([]byte(trimmed), &gc); err == nil && (gc.Title != "" || gc.Content != "") {
		gc.Title = strings.TrimSpace(gc.Title)
		gc.Content = strings.TrimSpace(gc.Content)
		return gc, true
	}

	if m := labeledContentPattern.FindStringSubmatch(trimmed); m != nil {
		return GeneratedContent{
			Title:   strings.TrimSpace(m[1]),
			Content: strings.TrimSpace(m[2]),
		}, true
	}

	return GeneratedContent{Content: strings.TrimSpace(raw)}, false
}

var codeFencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\n?(.*?)\\s*```$")

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}
