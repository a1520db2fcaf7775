// Package events 进程内事件总线，基于 watermill gochannel
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/Corphon/SceneScribe/internal/utils"
)

// TopicNoteIngested 笔记摄取成功后发布
const TopicNoteIngested = "note.ingested"

// NoteIngested 笔记摄取完成事件
type NoteIngested struct {
	NoteID     string    `json:"noteId"`
	ProjectID  string    `json:"projectId,omitempty"`
	Category   string    `json:"category"`
	Characters []string  `json:"characters"`
	Locations  []string  `json:"locations"`
	Events     []string  `json:"events"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher 发布摄取事件
type Publisher interface {
	PublishNoteIngested(ctx context.Context, evt NoteIngested) error
}

// Bus 包装 gochannel pub/sub
type Bus struct {
	pubSub *gochannel.GoChannel
}

// NewBus 创建进程内总线
func NewBus() *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NewStdLogger(false, false),
		),
	}
}

// PublishNoteIngested 发布事件；没有订阅者时事件被丢弃
func (b *Bus) PublishNoteIngested(ctx context.Context, evt NoteIngested) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return b.pubSub.Publish(TopicNoteIngested, msg)
}

// SubscribeNoteIngested 返回解码后的事件流，ctx 结束时关闭
func (b *Bus) SubscribeNoteIngested(ctx context.Context) (<-chan NoteIngested, error) {
	messages, err := b.pubSub.Subscribe(ctx, TopicNoteIngested)
	if err != nil {
		return nil, err
	}

	out := make(chan NoteIngested)
	go func() {
		defer close(out)
		for msg := range messages {
			var evt NoteIngested
			if err := json.Unmarshal(msg.Payload, &evt); err != nil {
				utils.GetLogger().Warn("丢弃无法解析的事件", map[string]interface{}{
					"topic":      TopicNoteIngested,
					"message_id": msg.UUID,
					"err":        err,
				})
				msg.Ack()
				continue
			}
			select {
			case out <- evt:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

// Close 关闭总线及所有订阅
func (b *Bus) Close() error {
	return b.pubSub.Close()
}
