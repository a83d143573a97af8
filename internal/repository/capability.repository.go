package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/nimasrn/messaging-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CapabilityRepository struct {
	*pg.DB
}

func NewCapabilityRepository(db *pg.DB) *CapabilityRepository {
	return &CapabilityRepository{
		db,
	}
}

func (r *CapabilityRepository) Get(ctx context.Context, agentID, msisdn string) (*model.CapabilityRecord, error) {
	var entity CapabilityEntity
	err := r.Read(ctx).WithContext(ctx).
		First(&entity, "agent_id = ? AND msisdn = ?", agentID, msisdn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toCapabilityModel(&entity), nil
}

// Upsert stores a probe outcome, replacing any previous record for the
// same (agent, msisdn) pair. Negative outcomes are stored too so the
// pair is never probed twice.
func (r *CapabilityRepository) Upsert(ctx context.Context, record *model.CapabilityRecord) (*model.CapabilityRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.ProbedAt.IsZero() {
		record.ProbedAt = time.Now().UTC()
	}
	entity := toCapabilityEntity(record)

	err := r.Write(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "agent_id"}, {Name: "msisdn"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"supports_rcs",
			"supports_revocation",
			"supports_rich_card_standalone",
			"supports_rich_card_carousel",
			"supports_action_calendar",
			"supports_action_dial",
			"supports_action_url",
			"supports_action_share_location",
			"supports_action_view_location",
			"supports_payments_v1",
			"probed_at",
		}),
	}).Create(entity).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, record.AgentID, record.MSISDN)
}

// Delete drops a cached record so the next send re-probes the address.
func (r *CapabilityRepository) Delete(ctx context.Context, agentID, msisdn string) error {
	return r.Write(ctx).WithContext(ctx).
		Where("agent_id = ? AND msisdn = ?", agentID, msisdn).
		Delete(&CapabilityEntity{}).Error
}

// ListProbedBefore returns records last probed before the cutoff, for
// the periodic re-probe sweep.
func (r *CapabilityRepository) ListProbedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.CapabilityRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []*CapabilityEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("probed_at < ?", cutoff).
		Order("probed_at ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	records := make([]*model.CapabilityRecord, len(entities))
	for i, e := range entities {
		records[i] = toCapabilityModel(e)
	}
	return records, nil
}

type VSMSKeyRepository struct {
	*pg.DB
}

func NewVSMSKeyRepository(db *pg.DB) *VSMSKeyRepository {
	return &VSMSKeyRepository{
		db,
	}
}

func (r *VSMSKeyRepository) Get(ctx context.Context, msisdn string) (*model.VSMSKey, error) {
	var entity VSMSKeyEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "msisdn = ?", msisdn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toVSMSKeyModel(&entity), nil
}

func (r *VSMSKeyRepository) Upsert(ctx context.Context, key *model.VSMSKey) (*model.VSMSKey, error) {
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	if key.ProbedAt.IsZero() {
		key.ProbedAt = time.Now().UTC()
	}
	entity := toVSMSKeyEntity(key)

	err := r.Write(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "msisdn"}},
		DoUpdates: clause.AssignmentColumns([]string{"public_key", "probed_at"}),
	}).Create(entity).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, key.MSISDN)
}
