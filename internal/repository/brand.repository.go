package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/nimasrn/messaging-gateway/pkg/pg"
	"gorm.io/gorm"
)

type BrandRepository struct {
	*pg.DB
}

func NewBrandRepository(db *pg.DB) *BrandRepository {
	return &BrandRepository{
		db,
	}
}

func (r *BrandRepository) Create(ctx context.Context, b *model.Brand) (*model.Brand, error) {
	entity := toBrandEntity(b)
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toBrandModel(entity), nil
}

func (r *BrandRepository) Get(ctx context.Context, id string) (*model.Brand, error) {
	var entity BrandEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toBrandModel(&entity), nil
}

func (r *BrandRepository) GetRepresentative(ctx context.Context, id string) (*model.Representative, error) {
	var entity RepresentativeEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toRepresentativeModel(&entity), nil
}

// GetGBMAgentByGoogleID resolves the receiving agent for an inbound
// Business Messages webhook.
func (r *BrandRepository) GetGBMAgentByGoogleID(ctx context.Context, googleID string) (*model.GBMAgent, error) {
	var entity GBMAgentEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "google_id = ?", googleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toGBMAgentModel(&entity), nil
}

// GetRCSAgentBySubscription resolves the receiving agent for an inbound
// pubsub push by its subscription name.
func (r *BrandRepository) GetRCSAgentBySubscription(ctx context.Context, subscription string) (*model.RCSAgent, error) {
	var entity RCSAgentEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "subscription_name = ?", subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toRCSAgentModel(&entity), nil
}

func (r *BrandRepository) GetRCSAgentByBrand(ctx context.Context, brandID string) (*model.RCSAgent, error) {
	var entity RCSAgentEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "brand_id = ?", brandID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toRCSAgentModel(&entity), nil
}

// GetSMSAgentByMSISDN resolves the receiving agent for an inbound
// carrier webhook by the number the user texted.
func (r *BrandRepository) GetSMSAgentByMSISDN(ctx context.Context, msisdn string) (*model.SMSAgent, error) {
	var entity SMSAgentEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "msisdn = ?", msisdn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toSMSAgentModel(&entity), nil
}

// GetSMSAgentByAccountSID resolves the carrier account a webhook claims
// to come from, so its signature can be checked against the stored
// token before anything else is trusted.
func (r *BrandRepository) GetSMSAgentByAccountSID(ctx context.Context, accountSID string) (*model.SMSAgent, error) {
	var entity SMSAgentEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "account_sid = ?", accountSID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toSMSAgentModel(&entity), nil
}

func (r *BrandRepository) GetSMSAgentByBrand(ctx context.Context, brandID string) (*model.SMSAgent, error) {
	var entity SMSAgentEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "brand_id = ?", brandID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toSMSAgentModel(&entity), nil
}

// ListRCSAgents returns every configured RCS agent, for the capability
// re-probe sweep.
func (r *BrandRepository) ListRCSAgents(ctx context.Context) ([]*model.RCSAgent, error) {
	var entities []*RCSAgentEntity
	if err := r.Read(ctx).WithContext(ctx).Find(&entities).Error; err != nil {
		return nil, err
	}
	agents := make([]*model.RCSAgent, len(entities))
	for i, e := range entities {
		agents[i] = toRCSAgentModel(e)
	}
	return agents, nil
}

func (r *BrandRepository) GetGBMAgentByBrand(ctx context.Context, brandID string) (*model.GBMAgent, error) {
	var entity GBMAgentEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "brand_id = ?", brandID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toGBMAgentModel(&entity), nil
}
