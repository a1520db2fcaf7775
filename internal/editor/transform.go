package editor

import (
	"fmt"

	"github.com/Corphon/SceneScribe/internal/models"
	"github.com/Corphon/SceneScribe/internal/prompts"
)

// BuildTransformRequest 组装一次变换请求。宿主可以提供完整文档时附带全文，
// 标题栏等不可寻址的表面省略。未知动作属于编程错误，直接 panic。
func BuildTransformRequest(text string, action models.TransformAction, instructions string, doc DocumentSource) models.TransformationRequest {
	if !action.Valid() {
		panic(fmt.Sprintf("editor: unknown transform action %q", action))
	}
	req := models.TransformationRequest{
		Text:                   text,
		Action:                 action,
		AdditionalInstructions: instructions,
	}
	if doc != nil {
		if full, ok := doc.FullDocument(); ok {
			req.FullDocument = full
		}
	}
	return req
}

// PreviewPrompt 服务端将要发送给模型的提示词
func PreviewPrompt(req models.TransformationRequest) (string, error) {
	return prompts.Transform(req)
}
