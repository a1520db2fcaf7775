// internal/services/context_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/Corphon/SceneScribe/internal/errors"
	"github.com/Corphon/SceneScribe/internal/models"
	"github.com/Corphon/SceneScribe/internal/storage"
	"github.com/Corphon/SceneScribe/internal/tracer"
	"github.com/Corphon/SceneScribe/internal/utils"
)

// NoneSpecified 字段或分段缺失时的占位文本
const NoneSpecified = "None specified"

// ChapterContext 为一次生成请求组装的章节上下文，每次请求重新构建
type ChapterContext struct {
	ChapterTitle string
	ChapterText  string
	Characters   []models.CharacterSummary
	Settings     []models.SettingSummary
	PlotPoints   []models.PlotPointSummary
	Beats        []models.Beat
	Notes        []models.ChapterNote
}

// ContextService 从章节及其关联实体组装有界的提示上下文
type ContextService struct {
	store        storage.Store
	chapterWords int
	itemWords    int
}

// NewContextService 创建上下文服务；字数上限<=0表示不截断
func NewContextService(store storage.Store, chapterWords, itemWords int) *ContextService {
	return &ContextService{
		store:        store,
		chapterWords: chapterWords,
		itemWords:    itemWords,
	}
}

// Assemble 读取章节、关联实体、beats 和 notes
func (s *ContextService) Assemble(ctx context.Context, chapterID string) (*ChapterContext, error) {
	if strings.TrimSpace(chapterID) == "" {
		return nil, apperrors.NewValidationError("chapterId不能为空", nil)
	}

	ctx, span := tracer.Tracer("context").Start(ctx, "context.assemble")
	defer span.End()
	span.SetAttributes(attribute.String("chapter.id", chapterID))

	doc, err := s.store.Get(ctx, models.CollectionChapters, chapterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("章节不存在: %s", chapterID), err)
		}
		return nil, apperrors.NewProcessingError("读取章节失败", err)
	}
	var chapter models.Chapter
	if err := doc.Decode(&chapter); err != nil {
		return nil, apperrors.NewProcessingError("解析章节失败", err)
	}

	connDocs, err := s.store.Query(ctx, models.CollectionEntityConnections, "chapter_id", chapterID)
	if err != nil {
		return nil, apperrors.NewProcessingError("读取章节实体关联失败", err)
	}
	buckets := bucketConnections(connDocs)

	cc := &ChapterContext{
		ChapterTitle: chapter.Title,
		ChapterText:  truncateWords(chapter.Content, s.chapterWords),
	}

	var summaries [3][]models.EntitySummary
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range models.EntityKinds {
		ids := buckets[kind]
		if len(ids) == 0 {
			continue
		}
		i, kind := i, kind
		g.Go(func() error {
			list, err := s.fetchSummaries(gctx, kind, ids)
			summaries[i] = list
			return err
		})
	}
	g.Go(func() error {
		docs, err := s.store.QueryOrdered(gctx, models.CollectionChapterBeats, "chapter_id", chapterID, "order")
		if err != nil {
			return fmt.Errorf("读取beats失败: %w", err)
		}
		for _, d := range docs {
			var b models.Beat
			if err := d.Decode(&b); err != nil {
				return err
			}
			b.Content = truncateWords(b.Content, s.itemWords)
			cc.Beats = append(cc.Beats, b)
		}
		return nil
	})
	g.Go(func() error {
		docs, err := s.store.Query(gctx, models.CollectionChapterNotes, "chapter_id", chapterID)
		if err != nil {
			return fmt.Errorf("读取notes失败: %w", err)
		}
		for _, d := range docs {
			var n models.ChapterNote
			if err := d.Decode(&n); err != nil {
				return err
			}
			n.Content = truncateWords(n.Content, s.itemWords)
			cc.Notes = append(cc.Notes, n)
		}
		sort.Slice(cc.Notes, func(a, b int) bool { return cc.Notes[a].ID < cc.Notes[b].ID })
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, apperrors.NewProcessingError("组装章节上下文失败", err)
	}

	for _, list := range summaries {
		sortSummaries(list)
		for _, e := range list {
			switch v := e.(type) {
			case models.CharacterSummary:
				cc.Characters = append(cc.Characters, v)
			case models.SettingSummary:
				cc.Settings = append(cc.Settings, v)
			case models.PlotPointSummary:
				cc.PlotPoints = append(cc.PlotPoints, v)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("context.characters", len(cc.Characters)),
		attribute.Int("context.settings", len(cc.Settings)),
		attribute.Int("context.plot_points", len(cc.PlotPoints)),
	)
	return cc, nil
}

// AssembleText 组装并渲染为提示文本
func (s *ContextService) AssembleText(ctx context.Context, chapterID string) (string, error) {
	cc, err := s.Assemble(ctx, chapterID)
	if err != nil {
		return "", err
	}
	return cc.Render(), nil
}

func (s *ContextService) fetchSummaries(ctx context.Context, kind models.EntityKind, ids []string) ([]models.EntitySummary, error) {
	docs, err := s.store.GetMany(ctx, kind.Collection(), ids)
	if err != nil {
		return nil, fmt.Errorf("读取%s失败: %w", kind, err)
	}
	out := make([]models.EntitySummary, 0, len(docs))
	for _, d := range docs {
		raw, err := d.Raw()
		if err != nil {
			return nil, err
		}
		e, err := models.DecodeEntitySummary(kind, d.ID, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// bucketConnections 按实体类别分组并去重
func bucketConnections(docs []storage.Document) map[models.EntityKind][]string {
	buckets := make(map[models.EntityKind][]string, len(models.EntityKinds))
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		var conn models.EntityConnection
		if err := d.Decode(&conn); err != nil || conn.EntityID == "" {
			continue
		}
		if conn.EntityKind.Collection() == "" {
			utils.GetLogger().Warn("忽略未知类别的实体关联", map[string]interface{}{
				"connection_id": d.ID,
				"entity_kind":   string(conn.EntityKind),
			})
			continue
		}
		key := string(conn.EntityKind) + "/" + conn.EntityID
		if seen[key] {
			continue
		}
		seen[key] = true
		buckets[conn.EntityKind] = append(buckets[conn.EntityKind], conn.EntityID)
	}
	return buckets
}

func sortSummaries(list []models.EntitySummary) {
	sort.SliceStable(list, func(i, j int) bool {
		ni, nj := strings.ToLower(list[i].DisplayName()), strings.ToLower(list[j].DisplayName())
		if ni != nj {
			return ni < nj
		}
		return list[i].EntityID() < list[j].EntityID()
	})
}

// truncateWords 按空白分词截断，被截断的文本以 ... 结尾
func truncateWords(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= limit {
		return s
	}
	return strings.Join(words[:limit], " ") + "..."
}

// Render 以固定分段顺序输出上下文：角色、设定、情节点、beats、notes
func (c *ChapterContext) Render() string {
	var b strings.Builder

	b.WriteString("CHAPTER: ")
	b.WriteString(orNone(c.ChapterTitle))
	b.WriteString("\n")
	b.WriteString(orNone(c.ChapterText))
	b.WriteString("\n")

	section(&b, "CHARACTERS", len(c.Characters), func() {
		for _, ch := range c.Characters {
			b.WriteString("- Name: " + orNone(ch.Name) + "\n")
			b.WriteString("  Description: " + orNone(ch.Description) + "\n")
			b.WriteString("  Personality: " + orNone(ch.Personality) + "\n")
			b.WriteString("  Appearance: " + orNone(ch.Appearance) + "\n")
			b.WriteString("  Background: " + orNone(ch.Background) + "\n")
			b.WriteString("  Relationships: " + orNone(formatRelationships(ch.Relationships)) + "\n")
		}
	})

	section(&b, "SETTINGS", len(c.Settings), func() {
		for _, st := range c.Settings {
			b.WriteString("- Name: " + orNone(st.Name) + "\n")
			b.WriteString("  Type: " + orNone(st.Type) + "\n")
			b.WriteString("  Features: " + orNone(strings.Join(st.Features, ", ")) + "\n")
			b.WriteString("  Significance: " + orNone(st.Significance) + "\n")
		}
	})

	section(&b, "PLOT POINTS", len(c.PlotPoints), func() {
		for _, p := range c.PlotPoints {
			b.WriteString("- Name: " + orNone(p.Name) + "\n")
			b.WriteString("  Events: " + orNone(strings.Join(p.Events, "; ")) + "\n")
			b.WriteString("  Impact: " + orNone(p.Impact) + "\n")
			b.WriteString("  Connections: " + orNone(strings.Join(p.Connections, ", ")) + "\n")
		}
	})

	section(&b, "BEATS", len(c.Beats), func() {
		for i, beat := range c.Beats {
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, orNone(beat.Title), orNone(beat.Content))
		}
	})

	section(&b, "NOTES", len(c.Notes), func() {
		for _, n := range c.Notes {
			b.WriteString("- " + orNone(n.Title) + ": " + orNone(n.Content) + "\n")
		}
	})

	return strings.TrimRight(b.String(), "\n")
}

func section(b *strings.Builder, title string, n int, body func()) {
	b.WriteString("\n")
	b.WriteString(title)
	b.WriteString(":\n")
	if n == 0 {
		b.WriteString(NoneSpecified)
		b.WriteString("\n")
		return
	}
	body()
}

func formatRelationships(rels []models.Relationship) string {
	parts := make([]string, 0, len(rels))
	for _, r := range rels {
		if r.Target == "" {
			continue
		}
		p := r.Target
		if r.Type != "" {
			p += " (" + r.Type + ")"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "; ")
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return NoneSpecified
	}
	return s
}
