package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Corphon/SceneScribe/internal/editor"
	"github.com/Corphon/SceneScribe/internal/models"
)

// aiBackend 演示程序需要的两类模型调用
type aiBackend interface {
	editor.Transformer
	editor.ContentGenerator
}

// offlineAI 不依赖服务端的模拟模型，按动作给出确定的结果
type offlineAI struct {
	delay time.Duration
}

func (o offlineAI) wait(ctx context.Context) error {
	select {
	case <-time.After(o.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o offlineAI) Transform(ctx context.Context, req models.TransformationRequest) (string, error) {
	if err := o.wait(ctx); err != nil {
		return "", err
	}
	text := strings.TrimSpace(req.Text)
	switch req.Action {
	case models.ActionExpand:
		return text + " The moment stretched, heavy with everything left unsaid.", nil
	case models.ActionSummarize:
		words := strings.Fields(text)
		if len(words) > 6 {
			words = append(words[:6], "...")
		}
		return strings.Join(words, " "), nil
	case models.ActionRephrase:
		return "In other words, " + mapFirst(text, strings.ToLower), nil
	case models.ActionRevise:
		if req.AdditionalInstructions != "" {
			return fmt.Sprintf("%s [%s]", text, req.AdditionalInstructions), nil
		}
		return mapFirst(text, strings.ToUpper), nil
	}
	return "", fmt.Errorf("unsupported action %q", req.Action)
}

func (o offlineAI) Generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	if err := o.wait(ctx); err != nil {
		return "", err
	}
	switch req.Type {
	case models.ContentNote:
		return `{"title":"Archive letter","content":"Remember: the letter is sealed with the harbor guild's wax."}`, nil
	case models.ContentBeat:
		return "```json\n{\"title\":\"Decision\",\"content\":\"Mara breaks the seal.\"}\n```", nil
	}
	return " A bell rang somewhere below, three slow strokes.", nil
}

func mapFirst(s string, f func(string) string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return f(string(r[0])) + string(r[1:])
}
