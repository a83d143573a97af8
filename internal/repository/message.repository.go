package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/nimasrn/messaging-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStaleTransition is returned when a state change would move a
	// message backwards or out of a terminal state.
	ErrStaleTransition = errors.New("stale state transition")
)

type MessageRepository struct {
	*pg.DB
}

func NewMessageRepository(db *pg.DB) *MessageRepository {
	return &MessageRepository{
		db,
	}
}

func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	entity := toMessageEntity(msg)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toMessageModel(entity), nil
}

// CreateInbound persists a platform-delivered message. The second
// return is false when a message with the same channel and dedup key
// already exists, in which case the stored message is returned and the
// insert is a no-op. Webhook redelivery lands here.
func (r *MessageRepository) CreateInbound(ctx context.Context, msg *model.Message) (*model.Message, bool, error) {
	entity := toMessageEntity(msg)

	res := r.Write(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:     []clause.Column{{Name: "channel"}, {Name: "platform_dedup_id"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{gorm.Expr("platform_dedup_id <> ''")}},
		DoNothing:   true,
	}).Create(entity)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := r.GetByDedupID(ctx, msg.Channel, msg.PlatformDedupID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	return toMessageModel(entity), true, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toMessageModel(&entity), nil
}

// GetByPlatformMessageID resolves a message by the identifier the
// platform assigned on dispatch. Receipts correlate through this.
func (r *MessageRepository) GetByPlatformMessageID(ctx context.Context, channel model.Channel, platformMessageID string) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).
		First(&entity, "channel = ? AND platform_message_id = ?", string(channel), platformMessageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toMessageModel(&entity), nil
}

func (r *MessageRepository) GetByDedupID(ctx context.Context, channel model.Channel, dedupID string) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).
		First(&entity, "channel = ? AND platform_dedup_id = ?", string(channel), dedupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toMessageModel(&entity), nil
}

// GetByClientMessageID resolves a message by the identifier the tenant
// assigned when submitting it.
func (r *MessageRepository) GetByClientMessageID(ctx context.Context, brandID, clientMessageID string) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).
		First(&entity, "brand_id = ? AND client_message_id = ?", brandID, clientMessageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toMessageModel(&entity), nil
}

// HasInbound reports whether a conversation has ever produced an
// incoming message on a channel. Agent-initiated sends into
// conversations the user never opened are rejected upstream on this.
func (r *MessageRepository) HasInbound(ctx context.Context, channel model.Channel, conversationID string) (bool, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).Model(&MessageEntity{}).
		Where("channel = ? AND platform_conversation_id = ? AND direction = ?",
			string(channel), conversationID, string(model.DirectionIncoming)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateState advances a message through its lifecycle. The stored
// state is re-checked in the UPDATE's WHERE clause, so a racing
// receipt that already moved the message loses cleanly with
// ErrStaleTransition instead of moving it backwards.
func (r *MessageRepository) UpdateState(ctx context.Context, id string, to model.MessageState, updates map[string]interface{}) (*model.Message, error) {
	var entity MessageEntity
	err := r.Write(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if !model.CanTransition(model.MessageState(entity.State), to) {
		return toMessageModel(&entity), ErrStaleTransition
	}

	values := map[string]interface{}{"state": string(to)}
	for k, v := range updates {
		values[k] = v
	}
	res := r.Write(ctx).WithContext(ctx).Model(&MessageEntity{}).
		Where("id = ? AND state = ?", id, entity.State).
		Updates(values)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return current, ErrStaleTransition
	}
	return r.GetByID(ctx, id)
}

// MarkDispatched records the platform-assigned message ID alongside
// the dispatched state.
func (r *MessageRepository) MarkDispatched(ctx context.Context, id, platformMessageID string) (*model.Message, error) {
	return r.UpdateState(ctx, id, model.StateDispatched, map[string]interface{}{
		"platform_message_id": platformMessageID,
	})
}

// MarkFailed records a failure with its human-readable description.
func (r *MessageRepository) MarkFailed(ctx context.Context, id, description string) (*model.Message, error) {
	return r.UpdateState(ctx, id, model.StateFailed, map[string]interface{}{
		"error_description": description,
	})
}

// SetMetadata replaces the stored metadata mapping.
func (r *MessageRepository) SetMetadata(ctx context.Context, id string, metadata model.Metadata) error {
	entity := toMessageEntity(&model.Message{Metadata: metadata})
	return r.Write(ctx).WithContext(ctx).Model(&MessageEntity{}).
		Where("id = ?", id).
		Update("metadata", entity.Metadata).Error
}

func (r *MessageRepository) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&MessageEntity{})

	if f.BrandID != nil {
		q = q.Where("brand_id = ?", *f.BrandID)
	}
	if f.Channel != nil {
		q = q.Where("channel = ?", string(*f.Channel))
	}
	if f.ConversationID != nil && *f.ConversationID != "" {
		q = q.Where("platform_conversation_id = ?", *f.ConversationID)
	}
	if len(f.States) > 0 {
		states := make([]string, len(f.States))
		for i, s := range f.States {
			states[i] = string(s)
		}
		q = q.Where("state IN ?", states)
	}
	if f.From != nil {
		q = q.Where("timestamp >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("timestamp < ?", *f.To)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Build order clause
	order := "timestamp"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	// Apply pagination
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*MessageEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toMessageModels(entities), total, nil
}
