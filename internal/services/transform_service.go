// internal/services/transform_service.go
package services

import (
	"context"
	stderrors "errors"
	"strings"

	apperrors "github.com/Corphon/SceneScribe/internal/errors"
	"github.com/Corphon/SceneScribe/internal/models"
	"github.com/Corphon/SceneScribe/internal/prompts"
	"github.com/Corphon/SceneScribe/internal/utils"
)

// TransformService 对选中文本执行 expand/summarize/rephrase/revise
type TransformService struct {
	gen     Generator
	metrics *utils.APIMetrics
}

// NewTransformService 创建改写服务
func NewTransformService(gen Generator, metrics *utils.APIMetrics) *TransformService {
	if metrics == nil {
		metrics = utils.NewAPIMetrics()
	}
	return &TransformService{gen: gen, metrics: metrics}
}

// Transform 校验请求后调用模型，返回替换文本
func (s *TransformService) Transform(ctx context.Context, req models.TransformationRequest) (*models.TransformationResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, apperrors.NewValidationError("text不能为空", nil)
	}
	if !req.Action.Valid() {
		return nil, apperrors.NewValidationError("不支持的action: "+string(req.Action), nil)
	}

	prompt, err := prompts.Transform(req)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), err)
	}

	out, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.metrics.RecordTransform(string(req.Action), false)
		return nil, asModelError(err)
	}

	text := strings.TrimSpace(models.StripCodeFence(out))
	if text == "" {
		s.metrics.RecordTransform(string(req.Action), false)
		return nil, apperrors.NewModelFormatError("模型返回了空的改写结果", nil)
	}

	s.metrics.RecordTransform(string(req.Action), true)
	return &models.TransformationResponse{Success: true, TransformedText: text}, nil
}

// asModelError 保留已分类的错误，其余视为传输错误
func asModelError(err error) error {
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	return apperrors.NewTransportError("模型调用失败", err)
}
