package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/nimasrn/messaging-gateway/internal/queue"
	"github.com/nimasrn/messaging-gateway/internal/repository"
)

var (
	ErrUnknownBrand          = errors.New("unknown brand")
	ErrInvalidContent        = errors.New("message content is not valid JSON")
	ErrUnknownRepresentative = errors.New("representative does not belong to brand")
	ErrNotFound              = errors.New("message not found")
	ErrDuplicateClientID     = errors.New("client_message_id already used")
)

type MessageRepository interface {
	Create(ctx context.Context, m *model.Message) (*model.Message, error)
	GetByID(ctx context.Context, id string) (*model.Message, error)
	GetByClientMessageID(ctx context.Context, brandID, clientMessageID string) (*model.Message, error)
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
}

type BrandRepository interface {
	Get(ctx context.Context, id string) (*model.Brand, error)
	GetRepresentative(ctx context.Context, id string) (*model.Representative, error)
}

// Enqueuer is the queue surface the service publishes dispatch jobs
// to. Satisfied by *queue.Queue.
type Enqueuer interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// MessageService accepts outgoing messages: validate, persist in the
// accepted state, hand off to the dispatch queue. Delivery itself
// happens in the dispatcher process.
type MessageService struct {
	messages MessageRepository
	brands   BrandRepository
	dispatch Enqueuer
}

func NewMessageService(messages MessageRepository, brands BrandRepository, dispatch Enqueuer) *MessageService {
	return &MessageService{
		messages: messages,
		brands:   brands,
		dispatch: dispatch,
	}
}

func (s *MessageService) Create(ctx context.Context, p model.MessageCreateRequest) (*model.Message, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(p.Content) == 0 || !json.Valid(p.Content) {
		return nil, ErrInvalidContent
	}

	brand, err := s.brands.Get(ctx, p.BrandID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownBrand
	}
	if err != nil {
		return nil, err
	}

	if p.RepresentativeID != nil && *p.RepresentativeID != "" {
		rep, err := s.brands.GetRepresentative(ctx, *p.RepresentativeID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownRepresentative
		}
		if err != nil {
			return nil, err
		}
		if rep.BrandID != brand.ID {
			return nil, ErrUnknownRepresentative
		}
	}

	if p.ClientMessageID != nil && *p.ClientMessageID != "" {
		_, err := s.messages.GetByClientMessageID(ctx, brand.ID, *p.ClientMessageID)
		if err == nil {
			return nil, ErrDuplicateClientID
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	m := &model.Message{
		ID:                     uuid.NewString(),
		Direction:              model.DirectionOutgoing,
		State:                  model.StateAccepted,
		BrandID:                brand.ID,
		RepresentativeID:       p.RepresentativeID,
		Channel:                p.Channel,
		PlatformConversationID: p.PlatformConversationID,
		ClientMessageID:        p.ClientMessageID,
		Timestamp:              time.Now().UTC(),
		Metadata:               p.Metadata,
		MediaType:              p.MediaType,
		Content:                p.Content,
	}

	created, err := s.messages.Create(ctx, m)
	if err != nil {
		return nil, err
	}

	if _, err := s.dispatch.PublishJSON(ctx, queue.DispatchJob{MessageID: created.ID}, nil); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *MessageService) Get(ctx context.Context, id string) (*model.Message, error) {
	msg, err := s.messages.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return msg, err
}

func (s *MessageService) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	return s.messages.List(ctx, f)
}
