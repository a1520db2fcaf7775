// internal/services/extraction_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/Corphon/SceneScribe/internal/errors"
	"github.com/Corphon/SceneScribe/internal/events"
	"github.com/Corphon/SceneScribe/internal/models"
	"github.com/Corphon/SceneScribe/internal/prompts"
	"github.com/Corphon/SceneScribe/internal/storage"
	"github.com/Corphon/SceneScribe/internal/tracer"
	"github.com/Corphon/SceneScribe/internal/utils"
)

// DefaultConfidenceThreshold 进入富化阶段的最低置信度
const DefaultConfidenceThreshold = 0.8

// 由参与者和关联角色推导出的关系类型
const (
	RelAssociatedWith = "associated_with"
	RelParticipatesIn = "participates_in"
)

// 富化阶段的模型输出
type characterEnvelope struct {
	Characters []enrichedCharacter `json:"characters"`
}

type enrichedCharacter struct {
	Name          string                `json:"name"`
	Aliases       []string              `json:"aliases"`
	Role          string                `json:"role"`
	Description   string                `json:"description"`
	Personality   string                `json:"personality"`
	Appearance    string                `json:"appearance"`
	Background    string                `json:"background"`
	Relationships []models.Relationship `json:"relationships"`
}

type locationEnvelope struct {
	Locations []enrichedLocation `json:"locations"`
}

type enrichedLocation struct {
	Name                 string   `json:"name"`
	Type                 string   `json:"type"`
	Description          string   `json:"description"`
	Features             []string `json:"features"`
	Significance         string   `json:"significance"`
	AssociatedCharacters []string `json:"associated_characters"`
}

type eventEnvelope struct {
	Events []enrichedEvent `json:"events"`
}

type enrichedEvent struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Events       []string `json:"events"`
	Impact       string   `json:"impact"`
	Connections  []string `json:"connections"`
	Participants []string `json:"participants"`
}

// ExtractionService 两阶段笔记摄取：分类、过滤、富化、持久化
type ExtractionService struct {
	gen       Generator
	store     storage.Store
	threshold float64
	publisher events.Publisher
	metrics   *utils.APIMetrics
	newID     func() string
	now       func() time.Time
}

// ExtractionOption 配置 ExtractionService
type ExtractionOption func(*ExtractionService)

// WithPublisher 持久化成功后发布 note.ingested
func WithPublisher(p events.Publisher) ExtractionOption {
	return func(s *ExtractionService) { s.publisher = p }
}

// WithIDGenerator 替换文档ID生成器
func WithIDGenerator(f func() string) ExtractionOption {
	return func(s *ExtractionService) { s.newID = f }
}

// WithExtractionMetrics 替换指标记录器
func WithExtractionMetrics(m *utils.APIMetrics) ExtractionOption {
	return func(s *ExtractionService) { s.metrics = m }
}

// NewExtractionService 创建提取服务；threshold 不在 (0,1] 内时使用默认值
func NewExtractionService(gen Generator, store storage.Store, threshold float64, opts ...ExtractionOption) *ExtractionService {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}
	s := &ExtractionService{
		gen:       gen,
		store:     store,
		threshold: threshold,
		metrics:   utils.NewAPIMetrics(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type noopReporter struct{}

func (noopReporter) Stage(models.ExtractionStage, string) {}

// Ingest 处理一条笔记。任何一次模型调用失败都会中止整个流程，不会留下部分数据
func (s *ExtractionService) Ingest(ctx context.Context, req models.IngestRequest, progress ProgressReporter) (*models.IngestResult, error) {
	if progress == nil {
		progress = noopReporter{}
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperrors.NewValidationError("content不能为空", nil)
	}

	ctx, span := tracer.Tracer("extraction").Start(ctx, "extraction.ingest")
	defer span.End()

	progress.Stage(models.StageReceived, "笔记已接收")
	result, err := s.run(ctx, req, progress)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingest failed")
		s.metrics.RecordIngestion("failed", 0)
		progress.Stage(models.StageFailed, err.Error())
		utils.GetLogger().Error("笔记摄取失败", map[string]interface{}{
			"project_id": req.ProjectID,
			"err":        err,
		})
		return nil, err
	}

	span.SetAttributes(
		attribute.String("note.id", result.NoteID),
		attribute.Int("note.entities", result.ExtractedEntities.Count()),
	)
	s.metrics.RecordIngestion("ok", result.ExtractedEntities.Count())
	progress.Stage(models.StageDone, "笔记摄取完成")
	return result, nil
}

func (s *ExtractionService) run(ctx context.Context, req models.IngestRequest, progress ProgressReporter) (*models.IngestResult, error) {
	progress.Stage(models.StageClassifying, "正在分类笔记")
	var cls models.Classification
	if err := s.callJSON(ctx, "classify", prompts.Classify(req.Content), &cls); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cls.Category) == "" {
		cls.Category = "general"
	}

	sections := filterSections(cls.Sections, s.threshold)
	utils.GetLogger().Info("笔记分类完成", map[string]interface{}{
		"category":   cls.Category,
		"characters": len(sections.Characters),
		"locations":  len(sections.Locations),
		"events":     len(sections.Events),
	})

	var (
		characters []enrichedCharacter
		locations  []enrichedLocation
		evts       []enrichedEvent
	)

	if len(sections.Characters) > 0 {
		progress.Stage(models.StageEnrichingCharacters, "正在富化角色")
		var env characterEnvelope
		if err := s.callJSON(ctx, "enrich_characters", prompts.EnrichCharacters(req.Content, sections.Characters), &env); err != nil {
			return nil, err
		}
		for i := range env.Characters {
			c := &env.Characters[i]
			c.Name = strings.TrimSpace(c.Name)
			if c.Name == "" {
				c.Name = strings.TrimSpace(c.Role)
			}
			if c.Name == "" {
				return nil, apperrors.NewModelFormatError("富化后的角色缺少名称", nil)
			}
		}
		characters = env.Characters
	}

	known := knownCharacters(characters)

	if len(sections.Locations) > 0 {
		progress.Stage(models.StageEnrichingLocations, "正在富化地点")
		var env locationEnvelope
		if err := s.callJSON(ctx, "enrich_locations", prompts.EnrichLocations(req.Content, sections.Locations, known), &env); err != nil {
			return nil, err
		}
		for i := range env.Locations {
			env.Locations[i].Name = strings.TrimSpace(env.Locations[i].Name)
			if env.Locations[i].Name == "" {
				return nil, apperrors.NewModelFormatError("富化后的地点缺少名称", nil)
			}
		}
		locations = env.Locations
	}

	if len(sections.Events) > 0 {
		progress.Stage(models.StageEnrichingEvents, "正在富化事件")
		var env eventEnvelope
		if err := s.callJSON(ctx, "enrich_events", prompts.EnrichEvents(req.Content, sections.Events, known), &env); err != nil {
			return nil, err
		}
		for i := range env.Events {
			env.Events[i].Name = strings.TrimSpace(env.Events[i].Name)
			if env.Events[i].Name == "" {
				return nil, apperrors.NewModelFormatError("富化后的事件缺少名称", nil)
			}
		}
		evts = env.Events
	}

	progress.Stage(models.StagePersisting, "正在保存")
	return s.persist(ctx, req, cls, characters, locations, evts)
}

// callJSON 调用模型并解析JSON，span 覆盖单次调用
func (s *ExtractionService) callJSON(ctx context.Context, phase, prompt string, v interface{}) error {
	ctx, span := tracer.Tracer("extraction").Start(ctx, "extraction."+phase, trace.WithAttributes(
		attribute.String("extraction.phase", phase),
	))
	defer span.End()

	raw, err := generateStructured(ctx, s.gen, prompt)
	if err != nil {
		span.RecordError(err)
		return asModelError(err)
	}
	if err := DecodeModelJSON(raw, v); err != nil {
		span.RecordError(err)
		return apperrors.WrapError(err, phase+"阶段的模型输出无效", apperrors.ErrorTypeModelFormat)
	}
	return nil
}

func (s *ExtractionService) persist(ctx context.Context, req models.IngestRequest, cls models.Classification,
	characters []enrichedCharacter, locations []enrichedLocation, evts []enrichedEvent) (*models.IngestResult, error) {

	resolve := newNameResolver(characters)
	noteID := s.newID()
	now := s.now().UTC()
	batch := storage.NewBatch()

	var entities models.ExtractedEntities
	note := models.Note{
		ID:           noteID,
		ProjectID:    req.ProjectID,
		Content:      req.Content,
		Category:     cls.Category,
		Confidence:   cls.Confidence,
		Tags:         nonNil(cls.Tags),
		CharacterIDs: []string{},
		LocationIDs:  []string{},
		EventIDs:     []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for _, c := range characters {
		ch := models.Character{
			ID:            s.newID(),
			ProjectID:     req.ProjectID,
			Name:          c.Name,
			Aliases:       c.Aliases,
			Role:          c.Role,
			Description:   c.Description,
			Personality:   c.Personality,
			Appearance:    c.Appearance,
			Background:    c.Background,
			Relationships: mergeRelationships(resolve, characterRelationships(c)),
			SourceNoteID:  noteID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := batch.Set(models.CollectionCharacters, ch.ID, ch); err != nil {
			return nil, apperrors.NewProcessingError("构建角色文档失败", err)
		}
		note.CharacterIDs = append(note.CharacterIDs, ch.ID)
		entities.Characters = append(entities.Characters, ch)
	}

	for _, l := range locations {
		loc := models.Location{
			ID:                   s.newID(),
			ProjectID:            req.ProjectID,
			Name:                 l.Name,
			Type:                 l.Type,
			Description:          l.Description,
			Features:             l.Features,
			Significance:         l.Significance,
			AssociatedCharacters: resolveNames(resolve, l.AssociatedCharacters),
			SourceNoteID:         noteID,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := batch.Set(models.CollectionLocations, loc.ID, loc); err != nil {
			return nil, apperrors.NewProcessingError("构建地点文档失败", err)
		}
		note.LocationIDs = append(note.LocationIDs, loc.ID)
		entities.Locations = append(entities.Locations, loc)
	}

	for _, e := range evts {
		ev := models.Event{
			ID:           s.newID(),
			ProjectID:    req.ProjectID,
			Name:         e.Name,
			Description:  e.Description,
			Events:       e.Events,
			Impact:       e.Impact,
			Connections:  e.Connections,
			Participants: resolveNames(resolve, e.Participants),
			SourceNoteID: noteID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := batch.Set(models.CollectionEvents, ev.ID, ev); err != nil {
			return nil, apperrors.NewProcessingError("构建事件文档失败", err)
		}
		note.EventIDs = append(note.EventIDs, ev.ID)
		entities.Events = append(entities.Events, ev)
	}

	note.Relationships = mergeRelationships(resolve, collectRelationships(cls, characters, entities))
	if err := batch.Set(models.CollectionNotes, noteID, note); err != nil {
		return nil, apperrors.NewProcessingError("构建笔记文档失败", err)
	}

	if err := s.store.Commit(ctx, batch); err != nil {
		return nil, apperrors.NewProcessingError("保存提取结果失败", err)
	}

	s.publish(ctx, note, entities)

	return &models.IngestResult{
		NoteID:            noteID,
		Category:          cls.Category,
		Confidence:        cls.Confidence,
		Tags:              note.Tags,
		Relationships:     note.Relationships,
		ExtractedEntities: entities,
	}, nil
}

func (s *ExtractionService) publish(ctx context.Context, note models.Note, entities models.ExtractedEntities) {
	if s.publisher == nil {
		return
	}
	evt := events.NoteIngested{
		NoteID:     note.ID,
		ProjectID:  note.ProjectID,
		Category:   note.Category,
		Characters: []string{},
		Locations:  []string{},
		Events:     []string{},
		OccurredAt: note.CreatedAt,
	}
	for _, c := range entities.Characters {
		evt.Characters = append(evt.Characters, c.Name)
	}
	for _, l := range entities.Locations {
		evt.Locations = append(evt.Locations, l.Name)
	}
	for _, e := range entities.Events {
		evt.Events = append(evt.Events, e.Name)
	}
	if err := s.publisher.PublishNoteIngested(ctx, evt); err != nil {
		utils.GetLogger().Warn("发布摄取事件失败", map[string]interface{}{"note_id": note.ID, "err": err})
	}
}

// filterSections 仅保留置信度 >= threshold 的片段
func filterSections(in models.Sections, threshold float64) models.Sections {
	var out models.Sections
	for _, c := range in.Characters {
		if c.Confidence >= threshold {
			out.Characters = append(out.Characters, c)
		}
	}
	for _, l := range in.Locations {
		if l.Confidence >= threshold {
			out.Locations = append(out.Locations, l)
		}
	}
	for _, e := range in.Events {
		if e.Confidence >= threshold {
			out.Events = append(out.Events, e)
		}
	}
	return out
}

func knownCharacters(characters []enrichedCharacter) []prompts.KnownCharacter {
	out := make([]prompts.KnownCharacter, 0, len(characters))
	for _, c := range characters {
		out = append(out, prompts.KnownCharacter{Name: c.Name, Aliases: c.Aliases})
	}
	return out
}

// nameResolver 把名字或别名映射到规范名（不区分大小写）
type nameResolver map[string]string

func newNameResolver(characters []enrichedCharacter) nameResolver {
	r := make(nameResolver, len(characters)*2)
	for _, c := range characters {
		r[strings.ToLower(c.Name)] = c.Name
	}
	// 别名不覆盖已有的规范名
	for _, c := range characters {
		for _, a := range c.Aliases {
			key := strings.ToLower(strings.TrimSpace(a))
			if _, exists := r[key]; key != "" && !exists {
				r[key] = c.Name
			}
		}
	}
	return r
}

func (r nameResolver) canonical(name string) string {
	name = strings.TrimSpace(name)
	if c, ok := r[strings.ToLower(name)]; ok {
		return c
	}
	return name
}

func resolveNames(r nameResolver, names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		c := r.canonical(n)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

func characterRelationships(c enrichedCharacter) []models.Relationship {
	out := make([]models.Relationship, 0, len(c.Relationships))
	for _, rel := range c.Relationships {
		if strings.TrimSpace(rel.Source) == "" {
			rel.Source = c.Name
		}
		out = append(out, rel)
	}
	return out
}

// collectRelationships 汇总分类、角色富化、地点关联角色与事件参与者中的关系
func collectRelationships(cls models.Classification, characters []enrichedCharacter, entities models.ExtractedEntities) []models.Relationship {
	all := append([]models.Relationship{}, cls.Relationships...)
	for _, c := range characters {
		all = append(all, characterRelationships(c)...)
	}
	for _, l := range entities.Locations {
		for _, name := range l.AssociatedCharacters {
			all = append(all, models.Relationship{Source: name, Target: l.Name, Type: RelAssociatedWith})
		}
	}
	for _, e := range entities.Events {
		for _, name := range e.Participants {
			all = append(all, models.Relationship{Source: name, Target: e.Name, Type: RelParticipatesIn})
		}
	}
	return all
}

// mergeRelationships 解析别名并按 (source, target, type) 不区分大小写去重，保留首次出现的描述
func mergeRelationships(r nameResolver, rels []models.Relationship) []models.Relationship {
	seen := make(map[string]bool, len(rels))
	out := make([]models.Relationship, 0, len(rels))
	for _, rel := range rels {
		rel.Source = r.canonical(rel.Source)
		rel.Target = r.canonical(rel.Target)
		rel.Type = strings.TrimSpace(rel.Type)
		if rel.Source == "" || rel.Target == "" || strings.EqualFold(rel.Source, rel.Target) {
			continue
		}
		key := fmt.Sprintf("%s|%s|%s", strings.ToLower(rel.Source), strings.ToLower(rel.Target), strings.ToLower(rel.Type))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rel)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
