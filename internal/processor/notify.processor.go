package processor

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nimasrn/messaging-gateway/internal/queue"
	"github.com/nimasrn/messaging-gateway/pkg/logger"
	"github.com/nimasrn/messaging-gateway/pkg/prom"
)

// Notifier delivers one message to its brand's webhook. Implemented by
// the notifier package.
type Notifier interface {
	Notify(ctx context.Context, messageID string) error
}

// NotifyProcessor drains the notify queue. Delivery failures are
// retried through the queue's redelivery backoff; a message that still
// cannot be delivered after the configured attempts lands in the DLQ
// rather than retrying forever against a dead endpoint.
type NotifyProcessor struct {
	notifier    Notifier
	idempotency *IdempotencyService
}

func NewNotifyProcessor(notifier Notifier, idempotency *IdempotencyService) *NotifyProcessor {
	return &NotifyProcessor{
		notifier:    notifier,
		idempotency: idempotency,
	}
}

func (p *NotifyProcessor) GetType() string {
	return "notify"
}

func (p *NotifyProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var job queue.NotifyJob
	if err := json.Unmarshal(queueMessage.Data, &job); err != nil {
		logger.Error("Failed to unmarshal notify job", "error", err)
		return err
	}

	// The idempotency key includes the queue message id: the same
	// message legitimately notifies more than once as receipts land,
	// and each enqueue is its own delivery.
	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, "notify:"+job.MessageID+":"+queueMessage.ID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			logger.Error("Notify retries exhausted", "message_id", job.MessageID)
			prom.IncNotifyDelivery("exhausted")
			return nil // ACK to move to DLQ
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			return errors.New("lock held by another consumer")
		}
		return err
	}

	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	if err := p.notifier.Notify(ctx, job.MessageID); err != nil {
		logger.Error("Webhook notify failed", "message_id", job.MessageID, "retry_count", procCtx.RetryCount, "error", err)
		prom.IncNotifyDelivery("failure")
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "message_id", job.MessageID, "error", markErr)
		}
		return err
	}

	prom.IncNotifyDelivery("success")
	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		logger.Error("Failed to mark success", "message_id", job.MessageID, "error", markErr)
	}
	return nil
}
