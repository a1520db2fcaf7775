package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGeneratedContent(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   GeneratedContent
		wantOK bool
	}{
		{
			name:   "json",
			raw:    `{"title":"Storm","content":"The rain arrives."}`,
			want:   GeneratedContent{Title: "Storm", Content: "The rain arrives."},
			wantOK: true,
		},
		{
			name:   "fenced json",
			raw:    "```json\n{\"title\": \"Storm\", \"content\": \"The rain arrives.\"}\n```",
			want:   GeneratedContent{Title: "Storm", Content: "The rain arrives."},
			wantOK: true,
		},
		{
			name:   "labeled",
			raw:    "TITLE: Storm\nCONTENT: The rain arrives.\nIt does not stop.",
			want:   GeneratedContent{Title: "Storm", Content: "The rain arrives.\nIt does not stop."},
			wantOK: true,
		},
		{
			name:   "lowercase labels",
			raw:    "title: Storm content: Rain.",
			want:   GeneratedContent{Title: "Storm", Content: "Rain."},
			wantOK: true,
		},
		{
			name:   "opaque prose",
			raw:    "  Just some prose.  ",
			want:   GeneratedContent{Content: "Just some prose."},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseGeneratedContent(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("```\n{\"a\":1}```"))
	assert.Equal(t, "plain", StripCodeFence("  plain "))
}

func TestDecodeEntitySummary(t *testing.T) {
	s, err := DecodeEntitySummary(EntitySetting, "loc-1", []byte(`{"id":"other","name":"Thornwood","type":"village","features":["mill"]}`))
	require.NoError(t, err)

	setting, ok := s.(SettingSummary)
	require.True(t, ok)
	assert.Equal(t, "loc-1", setting.EntityID())
	assert.Equal(t, "Thornwood", setting.DisplayName())
	assert.Equal(t, []string{"mill"}, setting.Features)
	assert.Equal(t, EntitySetting, setting.Kind())

	_, err = DecodeEntitySummary(EntityKind("item"), "x", []byte(`{}`))
	assert.Error(t, err)

	_, err = DecodeEntitySummary(EntityCharacter, "x", []byte(`not json`))
	assert.Error(t, err)
}

func TestActionsAndKinds(t *testing.T) {
	for _, a := range TransformActions {
		assert.True(t, a.Valid())
	}
	assert.False(t, TransformAction("translate").Valid())

	assert.True(t, ContentBeat.Structured())
	assert.False(t, ContentText.Structured())
	assert.False(t, ContentKind("poem").Valid())

	assert.Equal(t, CollectionLocations, EntitySetting.Collection())
	assert.Equal(t, CollectionEvents, EntityPlotPoint.Collection())
}
