package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/SceneScribe/internal/errors"
	"github.com/Corphon/SceneScribe/internal/models"
	"github.com/Corphon/SceneScribe/internal/utils"
)

func testMetrics() *utils.APIMetrics {
	return utils.NewAPIMetricsWith(utils.NewMetricsCollector(), utils.GetLogger())
}

func TestTransformValidatesBeforeModelCall(t *testing.T) {
	gen := &scriptedGenerator{}
	svc := NewTransformService(gen, testMetrics())

	_, err := svc.Transform(context.Background(), models.TransformationRequest{Text: "  ", Action: models.ActionExpand})
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.Transform(context.Background(), models.TransformationRequest{Text: "hello", Action: "shout"})
	assert.True(t, apperrors.IsValidationError(err))

	assert.Zero(t, gen.calls())
}

func TestTransformReturnsTrimmedText(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"\n  The city held its breath.  \n"}}
	m := testMetrics()
	svc := NewTransformService(gen, m)

	resp, err := svc.Transform(context.Background(), models.TransformationRequest{
		Text:         "The city was quiet.",
		Action:       models.ActionRephrase,
		FullDocument: "Chapter one.",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "The city held its breath.", resp.TransformedText)
	assert.Contains(t, gen.prompt(0), "<selection>\nThe city was quiet.\n</selection>")
	assert.EqualValues(t, 1, m.Collector().GetCounterValue("transform_rephrase"))
}

func TestTransformErrors(t *testing.T) {
	gen := &scriptedGenerator{
		replies: []string{"", "   "},
		errs:    map[int]error{0: errors.New("dial tcp: refused")},
	}
	m := testMetrics()
	svc := NewTransformService(gen, m)
	req := models.TransformationRequest{Text: "x", Action: models.ActionRevise}

	_, err := svc.Transform(context.Background(), req)
	assert.True(t, apperrors.IsTransportError(err))

	_, err = svc.Transform(context.Background(), req)
	assert.True(t, apperrors.IsModelFormatError(err))
	assert.EqualValues(t, 2, m.Collector().GetCounterValue("transform_failures_total"))
}
