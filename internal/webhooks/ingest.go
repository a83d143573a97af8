package webhooks

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nimasrn/messaging-gateway/internal/capability"
	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/nimasrn/messaging-gateway/internal/queue"
	"github.com/nimasrn/messaging-gateway/internal/repository"
	"github.com/nimasrn/messaging-gateway/internal/transcode"
	"github.com/nimasrn/messaging-gateway/pkg/logger"
	"github.com/nimasrn/messaging-gateway/pkg/prom"
)

// Enqueuer is the queue surface the ingestor publishes to. Satisfied
// by *queue.Queue.
type Enqueuer interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// Ingestor lands decoded webhook events: new inbound messages are
// persisted and handed to the notifier, receipts advance the referenced
// message, capability pushes update the registry.
type Ingestor struct {
	messages *repository.MessageRepository
	registry *capability.Registry
	notify   Enqueuer
}

func NewIngestor(messages *repository.MessageRepository, registry *capability.Registry, notify Enqueuer) *Ingestor {
	return &Ingestor{
		messages: messages,
		registry: registry,
		notify:   notify,
	}
}

// IngestEvents applies every decoded event from one webhook delivery.
// agentID is the RCS agent the delivery belongs to; it is only read
// for capability events.
func (i *Ingestor) IngestEvents(ctx context.Context, channel model.Channel, agentID string, events []transcode.InboundEvent) error {
	for _, ev := range events {
		var err error
		switch ev.Kind {
		case transcode.EventMessage:
			err = i.ingestMessage(ctx, ev)
		case transcode.EventReceipt:
			err = i.applyReceipt(ctx, channel, ev.Receipt)
		case transcode.EventCapability:
			err = i.registry.Apply(ctx, agentID, ev.Capability.MSISDN, ev.Capability.Enabled, ev.Capability.Features)
		}
		if err != nil {
			prom.IncWebhookEvent(string(channel), "error")
			return err
		}
		prom.IncWebhookEvent(string(channel), "ok")
	}
	return nil
}

func (i *Ingestor) ingestMessage(ctx context.Context, ev transcode.InboundEvent) error {
	msg := ev.Message
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if ev.RefPlatformMessageID != "" {
		if err := i.resolvePostbackRef(ctx, msg, ev.RefPlatformMessageID); err != nil {
			return err
		}
	}

	stored, fresh, err := i.messages.CreateInbound(ctx, msg)
	if err != nil {
		return err
	}
	if !fresh {
		// Webhook redelivery; the first delivery already notified.
		logger.Debug("duplicate inbound delivery", "channel", string(msg.Channel), "dedup_id", msg.PlatformDedupID)
		return nil
	}

	_, err = i.notify.PublishJSON(ctx, queue.NotifyJob{MessageID: stored.ID}, nil)
	return err
}

// resolvePostbackRef rewrites a postback's reference from the provider
// message id to the id the tenant knows: their own client id when they
// supplied one, our id otherwise.
func (i *Ingestor) resolvePostbackRef(ctx context.Context, msg *model.Message, platformMessageID string) error {
	if msg.MediaType != model.MediaPostback {
		return nil
	}
	ref, err := i.messages.GetByPlatformMessageID(ctx, msg.Channel, platformMessageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var content model.PostbackContent
	if err := json.Unmarshal(msg.Content, &content); err != nil {
		return err
	}
	refID := ref.ID
	if ref.ClientMessageID != nil && *ref.ClientMessageID != "" {
		refID = *ref.ClientMessageID
	}
	content.RefMessageID = &refID
	msg.Content = model.JSONContent(content)
	return nil
}

func (i *Ingestor) applyReceipt(ctx context.Context, channel model.Channel, r transcode.Receipt) error {
	var (
		ref *model.Message
		err error
	)
	if r.MessageID != "" {
		ref, err = i.messages.GetByID(ctx, r.MessageID)
	} else {
		ref, err = i.messages.GetByPlatformMessageID(ctx, channel, r.PlatformMessageID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		// Receipt for a message we never sent; nothing to advance.
		return nil
	}
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if len(r.Metadata) > 0 {
		merged := model.Metadata{}
		for k, v := range ref.Metadata {
			merged[k] = v
		}
		for k, v := range r.Metadata {
			merged[k] = v
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		updates["metadata"] = string(raw)
	}
	if r.ErrorDescription != "" {
		updates["error_description"] = r.ErrorDescription
	}

	_, err = i.messages.UpdateState(ctx, ref.ID, r.State, updates)
	if errors.Is(err, repository.ErrStaleTransition) {
		// Duplicate or out-of-order receipt; the stored state stands.
		return nil
	}
	if err != nil {
		return err
	}

	_, err = i.notify.PublishJSON(ctx, queue.NotifyJob{MessageID: ref.ID}, nil)
	return err
}
