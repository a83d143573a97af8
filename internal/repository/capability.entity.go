package repository

import (
	"time"

	"github.com/nimasrn/messaging-gateway/internal/model"
)

type CapabilityEntity struct {
	ID      string `db:"id"       gorm:"primaryKey;column:id"`
	AgentID string `db:"agent_id" gorm:"column:agent_id;not null;uniqueIndex:idx_capability_agent_msisdn"`
	MSISDN  string `db:"msisdn"   gorm:"column:msisdn;not null;uniqueIndex:idx_capability_agent_msisdn"`

	SupportsRCS                bool `db:"supports_rcs"                   gorm:"column:supports_rcs;not null"`
	SupportsRevocation         bool `db:"supports_revocation"            gorm:"column:supports_revocation;not null"`
	SupportsRichCardStandalone bool `db:"supports_rich_card_standalone"  gorm:"column:supports_rich_card_standalone;not null"`
	SupportsRichCardCarousel   bool `db:"supports_rich_card_carousel"    gorm:"column:supports_rich_card_carousel;not null"`
	SupportsActionCalendar     bool `db:"supports_action_calendar"       gorm:"column:supports_action_calendar;not null"`
	SupportsActionDial         bool `db:"supports_action_dial"           gorm:"column:supports_action_dial;not null"`
	SupportsActionURL          bool `db:"supports_action_url"            gorm:"column:supports_action_url;not null"`
	SupportsActionShareLoc     bool `db:"supports_action_share_location" gorm:"column:supports_action_share_location;not null"`
	SupportsActionViewLoc      bool `db:"supports_action_view_location"  gorm:"column:supports_action_view_location;not null"`
	SupportsPaymentsV1         bool `db:"supports_payments_v1"           gorm:"column:supports_payments_v1;not null"`

	ProbedAt time.Time `db:"probed_at" gorm:"column:probed_at;not null"`
}

func (CapabilityEntity) TableName() string {
	return "capabilities"
}

type VSMSKeyEntity struct {
	ID        string    `db:"id"         gorm:"primaryKey;column:id"`
	MSISDN    string    `db:"msisdn"     gorm:"column:msisdn;not null;uniqueIndex"`
	PublicKey string    `db:"public_key" gorm:"column:public_key"`
	ProbedAt  time.Time `db:"probed_at"  gorm:"column:probed_at;not null"`
}

func (VSMSKeyEntity) TableName() string {
	return "vsms_keys"
}

func toCapabilityEntity(c *model.CapabilityRecord) *CapabilityEntity {
	if c == nil {
		return nil
	}
	return &CapabilityEntity{
		ID:                         c.ID,
		AgentID:                    c.AgentID,
		MSISDN:                     c.MSISDN,
		SupportsRCS:                c.SupportsRCS,
		SupportsRevocation:         c.SupportsRevocation,
		SupportsRichCardStandalone: c.SupportsRichCardStandalone,
		SupportsRichCardCarousel:   c.SupportsRichCardCarousel,
		SupportsActionCalendar:     c.SupportsActionCalendar,
		SupportsActionDial:         c.SupportsActionDial,
		SupportsActionURL:          c.SupportsActionURL,
		SupportsActionShareLoc:     c.SupportsActionShareLoc,
		SupportsActionViewLoc:      c.SupportsActionViewLoc,
		SupportsPaymentsV1:         c.SupportsPaymentsV1,
		ProbedAt:                   c.ProbedAt,
	}
}

func toCapabilityModel(e *CapabilityEntity) *model.CapabilityRecord {
	if e == nil {
		return nil
	}
	return &model.CapabilityRecord{
		ID:                         e.ID,
		AgentID:                    e.AgentID,
		MSISDN:                     e.MSISDN,
		SupportsRCS:                e.SupportsRCS,
		SupportsRevocation:         e.SupportsRevocation,
		SupportsRichCardStandalone: e.SupportsRichCardStandalone,
		SupportsRichCardCarousel:   e.SupportsRichCardCarousel,
		SupportsActionCalendar:     e.SupportsActionCalendar,
		SupportsActionDial:         e.SupportsActionDial,
		SupportsActionURL:          e.SupportsActionURL,
		SupportsActionShareLoc:     e.SupportsActionShareLoc,
		SupportsActionViewLoc:      e.SupportsActionViewLoc,
		SupportsPaymentsV1:         e.SupportsPaymentsV1,
		ProbedAt:                   e.ProbedAt,
	}
}

func toVSMSKeyEntity(k *model.VSMSKey) *VSMSKeyEntity {
	if k == nil {
		return nil
	}
	return &VSMSKeyEntity{
		ID:        k.ID,
		MSISDN:    k.MSISDN,
		PublicKey: k.PublicKey,
		ProbedAt:  k.ProbedAt,
	}
}

func toVSMSKeyModel(e *VSMSKeyEntity) *model.VSMSKey {
	if e == nil {
		return nil
	}
	return &model.VSMSKey{
		ID:        e.ID,
		MSISDN:    e.MSISDN,
		PublicKey: e.PublicKey,
		ProbedAt:  e.ProbedAt,
	}
}
