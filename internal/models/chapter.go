// internal/models/chapter.go
package models

import "time"

// 存储集合名
const (
	CollectionChapters          = "chapters"
	CollectionCharacters        = "characters"
	CollectionLocations         = "locations"
	CollectionEvents            = "events"
	CollectionChapterBeats      = "chapterBeats"
	CollectionChapterNotes      = "chapterNotes"
	CollectionEntityConnections = "chapterEntityConnections"
	CollectionNotes             = "notes"
)

// Chapter 章节
type Chapter struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Beat 附属于章节的简短情节推进记录
type Beat struct {
	ID        string    `json:"id"`
	ChapterID string    `json:"chapter_id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChapterNote 章节备注
type ChapterNote struct {
	ID        string    `json:"id"`
	ChapterID string    `json:"chapter_id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityConnection 章节与实体之间的关联记录
type EntityConnection struct {
	ID         string     `json:"id"`
	ChapterID  string     `json:"chapter_id"`
	ProjectID  string     `json:"project_id"`
	EntityID   string     `json:"entity_id"`
	EntityKind EntityKind `json:"entity_kind"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
