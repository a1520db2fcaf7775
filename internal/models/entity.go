// internal/models/entity.go
package models

import (
	"encoding/json"
	"fmt"
)

// EntityKind 实体类别
type EntityKind string

const (
	EntityCharacter EntityKind = "character"
	EntitySetting   EntityKind = "setting"
	EntityPlotPoint EntityKind = "plotPoint"
)

// EntityKinds 上下文中实体分段的固定顺序
var EntityKinds = []EntityKind{EntityCharacter, EntitySetting, EntityPlotPoint}

// Collection 返回该类别实体所在的集合
func (k EntityKind) Collection() string {
	switch k {
	case EntityCharacter:
		return CollectionCharacters
	case EntitySetting:
		return CollectionLocations
	case EntityPlotPoint:
		return CollectionEvents
	default:
		return ""
	}
}

// EntitySummary is the per-kind view of an entity used when rendering chapter context.
// Implementations are CharacterSummary, SettingSummary and PlotPointSummary.
type EntitySummary interface {
	Kind() EntityKind
	EntityID() string
	DisplayName() string
}

// CharacterSummary 角色摘要
type CharacterSummary struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Personality   string         `json:"personality"`
	Appearance    string         `json:"appearance"`
	Background    string         `json:"background"`
	Relationships []Relationship `json:"relationships"`
}

func (c CharacterSummary) Kind() EntityKind { return EntityCharacter }
func (c CharacterSummary) EntityID() string { return c.ID }
func (c CharacterSummary) DisplayName() string { return c.Name }

// SettingSummary 场景设定摘要
type SettingSummary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Features     []string `json:"features"`
	Significance string   `json:"significance"`
}

func (s SettingSummary) Kind() EntityKind { return EntitySetting }
func (s SettingSummary) EntityID() string { return s.ID }
func (s SettingSummary) DisplayName() string { return s.Name }

// PlotPointSummary 情节点摘要
type PlotPointSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Events      []string `json:"events"`
	Impact      string   `json:"impact"`
	Connections []string `json:"connections"`
}

func (p PlotPointSummary) Kind() EntityKind { return EntityPlotPoint }
func (p PlotPointSummary) EntityID() string { return p.ID }
func (p PlotPointSummary) DisplayName() string { return p.Name }

// DecodeEntitySummary converts a raw stored document into the summary variant for kind.
// The id argument wins over any id inside the payload.
func DecodeEntitySummary(kind EntityKind, id string, raw []byte) (EntitySummary, error) {
	switch kind {
	case EntityCharacter:
		var c CharacterSummary
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode character %s: %w", id, err)
		}
		c.ID = id
		return c, nil
	case EntitySetting:
		var s SettingSummary
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode setting %s: %w", id, err)
		}
		s.ID = id
		return s, nil
	case EntityPlotPoint:
		var p PlotPointSummary
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode plot point %s: %w", id, err)
		}
		p.ID = id
		return p, nil
	default:
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
}
