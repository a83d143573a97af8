package repository

import (
	"encoding/json"
	"time"

	"github.com/nimasrn/messaging-gateway/internal/model"
)

type MessageEntity struct {
	ID                     string    `db:"id"                       gorm:"primaryKey;column:id"`
	Direction              string    `db:"direction"                gorm:"column:direction;not null"`
	State                  string    `db:"state"                    gorm:"column:state;not null;index"`
	BrandID                string    `db:"brand_id"                 gorm:"column:brand_id;not null;index"`
	RepresentativeID       *string   `db:"representative_id"        gorm:"column:representative_id"`
	Channel                string    `db:"channel"                  gorm:"column:channel;not null;uniqueIndex:idx_message_dedup,where:platform_dedup_id <> ''"`
	PlatformConversationID string    `db:"platform_conversation_id" gorm:"column:platform_conversation_id;not null;index"`
	PlatformMessageID      string    `db:"platform_message_id"      gorm:"column:platform_message_id;index"`
	PlatformDedupID        string    `db:"platform_dedup_id"        gorm:"column:platform_dedup_id;uniqueIndex:idx_message_dedup,where:platform_dedup_id <> ''"`
	ClientMessageID        *string   `db:"client_message_id"        gorm:"column:client_message_id"`
	Timestamp              time.Time `db:"timestamp"                gorm:"column:timestamp;not null"`
	Metadata               string    `db:"metadata"                 gorm:"column:metadata"`
	MediaType              string    `db:"media_type"               gorm:"column:media_type;not null"`
	Content                string    `db:"content"                  gorm:"column:content"`
	ErrorDescription       string    `db:"error_description"        gorm:"column:error_description"`
	CreatedAt              time.Time `db:"created_at"               gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time `db:"updated_at"               gorm:"column:updated_at;autoUpdateTime"`
}

func (MessageEntity) TableName() string {
	return "messages"
}

func toMessageEntity(m *model.Message) *MessageEntity {
	if m == nil {
		return nil
	}
	metadata := ""
	if m.Metadata != nil {
		raw, _ := json.Marshal(m.Metadata)
		metadata = string(raw)
	}
	return &MessageEntity{
		ID:                     m.ID,
		Direction:              string(m.Direction),
		State:                  string(m.State),
		BrandID:                m.BrandID,
		RepresentativeID:       m.RepresentativeID,
		Channel:                string(m.Channel),
		PlatformConversationID: m.PlatformConversationID,
		PlatformMessageID:      m.PlatformMessageID,
		PlatformDedupID:        m.PlatformDedupID,
		ClientMessageID:        m.ClientMessageID,
		Timestamp:              m.Timestamp,
		Metadata:               metadata,
		MediaType:              m.MediaType,
		Content:                string(m.Content),
		ErrorDescription:       m.ErrorDescription,
	}
}

func toMessageModel(e *MessageEntity) *model.Message {
	if e == nil {
		return nil
	}
	var metadata model.Metadata
	if e.Metadata != "" {
		_ = json.Unmarshal([]byte(e.Metadata), &metadata)
	}
	var content json.RawMessage
	if e.Content != "" {
		content = json.RawMessage(e.Content)
	}
	return &model.Message{
		ID:                     e.ID,
		Direction:              model.Direction(e.Direction),
		State:                  model.MessageState(e.State),
		BrandID:                e.BrandID,
		RepresentativeID:       e.RepresentativeID,
		Channel:                model.Channel(e.Channel),
		PlatformConversationID: e.PlatformConversationID,
		PlatformMessageID:      e.PlatformMessageID,
		PlatformDedupID:        e.PlatformDedupID,
		ClientMessageID:        e.ClientMessageID,
		Timestamp:              e.Timestamp,
		Metadata:               metadata,
		MediaType:              e.MediaType,
		Content:                content,
		ErrorDescription:       e.ErrorDescription,
	}
}

func toMessageModels(entities []*MessageEntity) []*model.Message {
	if entities == nil {
		return nil
	}
	models := make([]*model.Message, len(entities))
	for i, e := range entities {
		models[i] = toMessageModel(e)
	}
	return models
}
