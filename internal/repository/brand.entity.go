package repository

import (
	"time"

	"github.com/nimasrn/messaging-gateway/internal/model"
)

type BrandEntity struct {
	ID                   string    `db:"id"                     gorm:"primaryKey;column:id"`
	Name                 string    `db:"name"                   gorm:"column:name;not null"`
	WebhookURL           string    `db:"webhook_url"            gorm:"column:webhook_url"`
	WebhookSigningSecret string    `db:"webhook_signing_secret" gorm:"column:webhook_signing_secret"`
	ClientID             string    `db:"client_id"              gorm:"column:client_id"`
	CreatedAt            time.Time `db:"created_at"             gorm:"column:created_at;autoCreateTime"`
}

func (BrandEntity) TableName() string {
	return "brands"
}

type RepresentativeEntity struct {
	ID        string `db:"id"         gorm:"primaryKey;column:id"`
	BrandID   string `db:"brand_id"   gorm:"column:brand_id;not null;index"`
	Name      string `db:"name"       gorm:"column:name;not null"`
	IsBot     bool   `db:"is_bot"     gorm:"column:is_bot;not null"`
	AvatarURL string `db:"avatar_url" gorm:"column:avatar_url"`
}

func (RepresentativeEntity) TableName() string {
	return "representatives"
}

type GBMAgentEntity struct {
	ID       string `db:"id"        gorm:"primaryKey;column:id"`
	BrandID  string `db:"brand_id"  gorm:"column:brand_id;not null;uniqueIndex"`
	GoogleID string `db:"google_id" gorm:"column:google_id;not null;uniqueIndex"`
	Name     string `db:"name"      gorm:"column:name"`
}

func (GBMAgentEntity) TableName() string {
	return "gbm_agents"
}

type RCSAgentEntity struct {
	ID               string `db:"id"                gorm:"primaryKey;column:id"`
	BrandID          string `db:"brand_id"          gorm:"column:brand_id;not null;uniqueIndex"`
	Region           string `db:"region"            gorm:"column:region;not null"`
	AccessToken      string `db:"access_token"      gorm:"column:access_token"`
	WebhookToken     string `db:"webhook_token"     gorm:"column:webhook_token"`
	SubscriptionName string `db:"subscription_name" gorm:"column:subscription_name;uniqueIndex"`
}

func (RCSAgentEntity) TableName() string {
	return "rcs_agents"
}

type SMSAgentEntity struct {
	ID                string `db:"id"                   gorm:"primaryKey;column:id"`
	BrandID           string `db:"brand_id"             gorm:"column:brand_id;not null;uniqueIndex"`
	MSISDN            string `db:"msisdn"               gorm:"column:msisdn;not null;uniqueIndex"`
	AccountSID        string `db:"account_sid"          gorm:"column:account_sid;not null;index"`
	AccountToken      string `db:"account_token"        gorm:"column:account_token;not null"`
	VSMSAgentID       string `db:"vsms_agent_id"        gorm:"column:vsms_agent_id"`
	VSMSPrivateKeyPEM string `db:"vsms_private_key_pem" gorm:"column:vsms_private_key_pem"`
}

func (SMSAgentEntity) TableName() string {
	return "sms_agents"
}

func toBrandModel(e *BrandEntity) *model.Brand {
	if e == nil {
		return nil
	}
	return &model.Brand{
		ID:                   e.ID,
		Name:                 e.Name,
		WebhookURL:           e.WebhookURL,
		WebhookSigningSecret: e.WebhookSigningSecret,
		ClientID:             e.ClientID,
	}
}

func toBrandEntity(b *model.Brand) *BrandEntity {
	if b == nil {
		return nil
	}
	return &BrandEntity{
		ID:                   b.ID,
		Name:                 b.Name,
		WebhookURL:           b.WebhookURL,
		WebhookSigningSecret: b.WebhookSigningSecret,
		ClientID:             b.ClientID,
	}
}

func toRepresentativeModel(e *RepresentativeEntity) *model.Representative {
	if e == nil {
		return nil
	}
	return &model.Representative{
		ID:        e.ID,
		BrandID:   e.BrandID,
		Name:      e.Name,
		IsBot:     e.IsBot,
		AvatarURL: e.AvatarURL,
	}
}

func toGBMAgentModel(e *GBMAgentEntity) *model.GBMAgent {
	if e == nil {
		return nil
	}
	return &model.GBMAgent{
		ID:       e.ID,
		BrandID:  e.BrandID,
		GoogleID: e.GoogleID,
		Name:     e.Name,
	}
}

func toRCSAgentModel(e *RCSAgentEntity) *model.RCSAgent {
	if e == nil {
		return nil
	}
	return &model.RCSAgent{
		ID:               e.ID,
		BrandID:          e.BrandID,
		Region:           e.Region,
		AccessToken:      e.AccessToken,
		WebhookToken:     e.WebhookToken,
		SubscriptionName: e.SubscriptionName,
	}
}

func toSMSAgentModel(e *SMSAgentEntity) *model.SMSAgent {
	if e == nil {
		return nil
	}
	return &model.SMSAgent{
		ID:                e.ID,
		BrandID:           e.BrandID,
		MSISDN:            e.MSISDN,
		AccountSID:        e.AccountSID,
		AccountToken:      e.AccountToken,
		VSMSAgentID:       e.VSMSAgentID,
		VSMSPrivateKeyPEM: e.VSMSPrivateKeyPEM,
	}
}
