// internal/models/extraction.go
package models

import "time"

// ExtractionStage 笔记提取流水线所处阶段
type ExtractionStage string

const (
	StageReceived            ExtractionStage = "received"
	StageClassifying         ExtractionStage = "classifying"
	StageEnrichingCharacters ExtractionStage = "enriching-characters"
	StageEnrichingLocations  ExtractionStage = "enriching-locations"
	StageEnrichingEvents     ExtractionStage = "enriching-events"
	StagePersisting          ExtractionStage = "persisting"
	StageDone                ExtractionStage = "done"
	StageFailed              ExtractionStage = "failed"
)

// ExtractedCharacter 分类阶段识别出的角色片段
type ExtractedCharacter struct {
	Name       string   `json:"name"`
	Aliases    []string `json:"aliases,omitempty"`
	Snippet    string   `json:"snippet,omitempty"`
	Confidence float64  `json:"confidence"`
}

// ExtractedLocation 分类阶段识别出的地点片段
type ExtractedLocation struct {
	Name       string  `json:"name"`
	Snippet    string  `json:"snippet,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ExtractedEvent 分类阶段识别出的事件片段
type ExtractedEvent struct {
	Name       string  `json:"name"`
	Snippet    string  `json:"snippet,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Sections 需要进入富化阶段的各类片段
type Sections struct {
	Characters []ExtractedCharacter `json:"characters"`
	Locations  []ExtractedLocation  `json:"locations"`
	Events     []ExtractedEvent     `json:"events"`
}

// Empty 三类均为空
func (s Sections) Empty() bool {
	return len(s.Characters) == 0 && len(s.Locations) == 0 && len(s.Events) == 0
}

// Classification 分类阶段的模型输出
type Classification struct {
	Category      string         `json:"category"`
	Confidence    float64        `json:"confidence"`
	Tags          []string       `json:"tags"`
	Sections      Sections       `json:"sectionsToProcess"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

// ExtractedEntities 持久化后的实体集合
type ExtractedEntities struct {
	Characters []Character `json:"characters"`
	Locations  []Location  `json:"locations"`
	Events     []Event     `json:"events"`
}

// Count 实体总数
func (e ExtractedEntities) Count() int {
	return len(e.Characters) + len(e.Locations) + len(e.Events)
}

// Note 一条被摄取的笔记，引用其中提取出的所有实体
type Note struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"project_id,omitempty"`
	Content       string         `json:"content"`
	Category      string         `json:"category"`
	Confidence    float64        `json:"confidence"`
	Tags          []string       `json:"tags"`
	Relationships []Relationship `json:"relationships"`
	CharacterIDs  []string       `json:"character_ids"`
	LocationIDs   []string       `json:"location_ids"`
	EventIDs      []string       `json:"event_ids"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// IngestRequest 笔记摄取请求
type IngestRequest struct {
	Content   string `json:"content"`
	ProjectID string `json:"projectId,omitempty"`
}

// IngestResult 笔记摄取结果
type IngestResult struct {
	NoteID            string            `json:"noteId"`
	Category          string            `json:"category"`
	Confidence        float64           `json:"confidence"`
	Tags              []string          `json:"tags"`
	Relationships     []Relationship    `json:"relationships"`
	ExtractedEntities ExtractedEntities `json:"extractedEntities"`
}
