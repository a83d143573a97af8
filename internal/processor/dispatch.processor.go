package processor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nimasrn/messaging-gateway/internal/queue"
	"github.com/nimasrn/messaging-gateway/internal/repository"
	"github.com/nimasrn/messaging-gateway/pkg/logger"
	"github.com/nimasrn/messaging-gateway/pkg/prom"
)

// Dispatcher routes one outbound message to its platform. Implemented
// by the router.
type Dispatcher interface {
	Dispatch(ctx context.Context, messageID string) error
}

// DispatchProcessor drains the dispatch queue: each job is one
// outbound message to route and send, under the idempotency lock so a
// redelivered job cannot double-send.
type DispatchProcessor struct {
	dispatcher  Dispatcher
	messages    *repository.MessageRepository
	idempotency *IdempotencyService
}

func NewDispatchProcessor(dispatcher Dispatcher, messages *repository.MessageRepository, idempotency *IdempotencyService) *DispatchProcessor {
	return &DispatchProcessor{
		dispatcher:  dispatcher,
		messages:    messages,
		idempotency: idempotency,
	}
}

func (p *DispatchProcessor) GetType() string {
	return "dispatch"
}

func (p *DispatchProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var job queue.DispatchJob
	if err := json.Unmarshal(queueMessage.Data, &job); err != nil {
		logger.Error("Failed to unmarshal dispatch job", "error", err)
		return err // move to DLQ; the payload will never parse
	}

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, "dispatch:"+job.MessageID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			logger.Info("Message already dispatched, skipping", "message_id", job.MessageID)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			// The send kept failing on a transient error; give up and
			// settle the message so the tenant hears about it.
			logger.Error("Dispatch retries exhausted", "message_id", job.MessageID)
			if _, failErr := p.messages.MarkFailed(ctx, job.MessageID, "Maximum delivery attempts exceeded"); failErr != nil &&
				!errors.Is(failErr, repository.ErrStaleTransition) && !errors.Is(failErr, repository.ErrNotFound) {
				logger.Error("Failed to settle exhausted message", "message_id", job.MessageID, "error", failErr)
			}
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

	logger.Info("Dispatching message",
		"message_id", job.MessageID,
		"retry_count", procCtx.RetryCount,
		"is_retry", procCtx.IsRetry)

	start := time.Now()
	if err := p.dispatcher.Dispatch(ctx, job.MessageID); err != nil {
		logger.Error("Dispatch failed", "message_id", job.MessageID, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "message_id", job.MessageID, "error", markErr)
		}
		return err // NACK to retry from queue
	}

	p.recordDuration(ctx, job.MessageID, time.Since(start))

	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		logger.Error("Failed to mark success", "message_id", job.MessageID, "error", markErr)
		// Continue - the message was dispatched
	}
	return nil
}

func (p *DispatchProcessor) recordDuration(ctx context.Context, messageID string, elapsed time.Duration) {
	channel := "unknown"
	if msg, err := p.messages.GetByID(ctx, messageID); err == nil {
		channel = string(msg.Channel)
	}
	prom.AddMessageDispatchDuration(elapsed.Seconds(), channel)
}
