// internal/models/character.go
package models

import "time"

// Relationship 两个角色之间的关系
type Relationship struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Character 表示项目中的一个角色
type Character struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"project_id"`
	Name          string         `json:"name"`
	Aliases       []string       `json:"aliases,omitempty"`
	Role          string         `json:"role,omitempty"`
	Description   string         `json:"description,omitempty"`
	Personality   string         `json:"personality,omitempty"`
	Appearance    string         `json:"appearance,omitempty"`
	Background    string         `json:"background,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
	SourceNoteID  string         `json:"source_note_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Location 表示一个场景设定（地点）
type Location struct {
	ID                   string    `json:"id"`
	ProjectID            string    `json:"project_id"`
	Name                 string    `json:"name"`
	Type                 string    `json:"type,omitempty"`
	Description          string    `json:"description,omitempty"`
	Features             []string  `json:"features,omitempty"`
	Significance         string    `json:"significance,omitempty"`
	AssociatedCharacters []string  `json:"associated_characters,omitempty"`
	SourceNoteID         string    `json:"source_note_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Event 表示一个情节点
type Event struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Events       []string  `json:"events,omitempty"`
	Impact       string    `json:"impact,omitempty"`
	Connections  []string  `json:"connections,omitempty"`
	Participants []string  `json:"participants,omitempty"`
	SourceNoteID string    `json:"source_note_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
