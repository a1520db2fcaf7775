// internal/services/generation_service.go
package services

import (
	"context"
	"strings"

	apperrors "github.com/Corphon/SceneScribe/internal/errors"
	"github.com/Corphon/SceneScribe/internal/models"
	"github.com/Corphon/SceneScribe/internal/prompts"
)

// GenerationService 在光标处生成 note、beat 或正文
type GenerationService struct {
	gen      Generator
	contexts *ContextService
}

// NewGenerationService 创建生成服务
func NewGenerationService(gen Generator, contexts *ContextService) *GenerationService {
	return &GenerationService{gen: gen, contexts: contexts}
}

// Generate 组装章节上下文并调用模型。
// note/beat 的结果是 JSON {title, content} 或 TITLE:/CONTENT: 格式，原样返回给客户端解析
func (s *GenerationService) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResponse, error) {
	if !req.Type.Valid() {
		return nil, apperrors.NewValidationError("不支持的type: "+string(req.Type), nil)
	}
	if strings.TrimSpace(req.ChapterID) == "" {
		return nil, apperrors.NewValidationError("chapterId不能为空", nil)
	}

	chapterContext, err := s.contexts.AssembleText(ctx, req.ChapterID)
	if err != nil {
		return nil, err
	}

	out, err := s.gen.Generate(ctx, prompts.Generate(req.Type, chapterContext, req.CurrentContent))
	if err != nil {
		return nil, asModelError(err)
	}

	out = models.StripCodeFence(out)
	if out == "" {
		return nil, apperrors.NewModelFormatError("模型返回了空内容", nil)
	}
	return &models.GenerationResponse{GeneratedContent: out}, nil
}
