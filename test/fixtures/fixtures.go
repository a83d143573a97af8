package fixtures

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/messaging-gateway/internal/model"
)

var (
	TestBrand1 = model.Brand{
		ID:                   "brand-1",
		Name:                 "Acme Retail",
		WebhookURL:           "https://acme.example.com/hook",
		WebhookSigningSecret: "acme-signing-secret",
	}

	TestBrand2 = model.Brand{
		ID:                   "brand-2",
		Name:                 "Globex Support",
		WebhookURL:           "https://globex.example.com/hook",
		WebhookSigningSecret: "globex-signing-secret",
	}

	TestBrandNoWebhook = model.Brand{
		ID:   "brand-3",
		Name: "Silent Brand",
	}
)

func NewTestMessage(brandID string, channel model.Channel, conversationID string) *model.Message {
	return &model.Message{
		ID:                     uuid.NewString(),
		Direction:              model.DirectionOutgoing,
		State:                  model.StateAccepted,
		BrandID:                brandID,
		Channel:                channel,
		PlatformConversationID: conversationID,
		Timestamp:              time.Now().UTC(),
		MediaType:              "text/plain",
		Content:                json.RawMessage(`"fixture message"`),
	}
}

func NewTestMessageCreateRequest(brandID string, channel model.Channel, conversationID string) model.MessageCreateRequest {
	return model.MessageCreateRequest{
		BrandID:                brandID,
		Channel:                channel,
		PlatformConversationID: conversationID,
		MediaType:              "text/plain",
		Content:                json.RawMessage(`"fixture message"`),
	}
}

var (
	ValidMSISDNs = []string{
		"+1234567890",
		"+9876543210",
		"+4412345678",
		"+33123456789",
		"+81312345678",
	}

	InvalidMSISDNs = []string{
		"",
		"123",
		"invalid",
		"+",
		"abc123",
	}

	ValidTextContents = []string{
		`"Hello World"`,
		`"Test message"`,
		`"Short"`,
		`"This is a longer message with more content for testing purposes"`,
	}
)

func MessageFilterByBrand(brandID string) model.MessageFilter {
	return model.MessageFilter{
		BrandID: &brandID,
		Limit:   50,
		Offset:  0,
		Desc:    false,
	}
}

func MessageFilterWithPagination(brandID string, limit, offset int) model.MessageFilter {
	return model.MessageFilter{
		BrandID: &brandID,
		Limit:   limit,
		Offset:  offset,
		Desc:    false,
	}
}

func MessageFilterByConversation(brandID, conversationID string) model.MessageFilter {
	return model.MessageFilter{
		BrandID:        &brandID,
		ConversationID: &conversationID,
		Limit:          50,
		Offset:         0,
		Desc:           false,
	}
}

func MessageFilterByTimeRange(brandID string, from, to time.Time) model.MessageFilter {
	return model.MessageFilter{
		BrandID: &brandID,
		From:    &from,
		To:      &to,
		Limit:   50,
		Offset:  0,
		Desc:    false,
	}
}
