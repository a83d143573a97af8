package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/nimasrn/messaging-gateway/internal/queue"
	"github.com/nimasrn/messaging-gateway/internal/repository"
)

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) GetByClientMessageID(ctx context.Context, brandID, clientMessageID string) (*model.Message, error) {
	args := m.Called(ctx, brandID, clientMessageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Message), args.Get(1).(int64), args.Error(2)
}

type MockBrandRepository struct {
	mock.Mock
}

func (m *MockBrandRepository) Get(ctx context.Context, id string) (*model.Brand, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Brand), args.Error(1)
}

func (m *MockBrandRepository) GetRepresentative(ctx context.Context, id string) (*model.Representative, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Representative), args.Error(1)
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

func validCreateRequest() model.MessageCreateRequest {
	return model.MessageCreateRequest{
		BrandID:                "brand-1",
		Channel:                model.ChannelGBM,
		PlatformConversationID: "conversations/abc",
		MediaType:              "text/plain",
		Content:                json.RawMessage(`"hello"`),
	}
}

func TestMessageService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted and queued", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		brandRepo := new(MockBrandRepository)
		dispatch := new(MockEnqueuer)
		service := NewMessageService(msgRepo, brandRepo, dispatch)

		brandRepo.On("Get", ctx, "brand-1").Return(&model.Brand{ID: "brand-1"}, nil)
		msgRepo.On("Create", ctx, mock.MatchedBy(func(m *model.Message) bool {
			return m.ID != "" &&
				m.Direction == model.DirectionOutgoing &&
				m.State == model.StateAccepted &&
				m.BrandID == "brand-1"
		})).Return(&model.Message{ID: "msg-1", State: model.StateAccepted}, nil)
		dispatch.On("PublishJSON", ctx, queue.DispatchJob{MessageID: "msg-1"}, map[string]string(nil)).
			Return("q-1", nil)

		msg, err := service.Create(ctx, validCreateRequest())
		require.NoError(t, err)
		assert.Equal(t, "msg-1", msg.ID)

		msgRepo.AssertExpectations(t)
		dispatch.AssertExpectations(t)
	})

	t.Run("unknown brand", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		brandRepo := new(MockBrandRepository)
		service := NewMessageService(msgRepo, brandRepo, new(MockEnqueuer))

		brandRepo.On("Get", ctx, "brand-1").Return(nil, repository.ErrNotFound)

		msg, err := service.Create(ctx, validCreateRequest())
		assert.ErrorIs(t, err, ErrUnknownBrand)
		assert.Nil(t, msg)
	})

	t.Run("unknown platform", func(t *testing.T) {
		service := NewMessageService(new(MockMessageRepository), new(MockBrandRepository), new(MockEnqueuer))

		req := validCreateRequest()
		req.Channel = "telegram"
		msg, err := service.Create(ctx, req)
		assert.Error(t, err)
		assert.Nil(t, msg)
	})

	t.Run("content must be JSON", func(t *testing.T) {
		service := NewMessageService(new(MockMessageRepository), new(MockBrandRepository), new(MockEnqueuer))

		req := validCreateRequest()
		req.Content = json.RawMessage(`{not json`)
		msg, err := service.Create(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidContent)
		assert.Nil(t, msg)
	})

	t.Run("representative from another brand", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		brandRepo := new(MockBrandRepository)
		service := NewMessageService(msgRepo, brandRepo, new(MockEnqueuer))

		repID := "rep-1"
		brandRepo.On("Get", ctx, "brand-1").Return(&model.Brand{ID: "brand-1"}, nil)
		brandRepo.On("GetRepresentative", ctx, "rep-1").
			Return(&model.Representative{ID: "rep-1", BrandID: "brand-2"}, nil)

		req := validCreateRequest()
		req.RepresentativeID = &repID
		msg, err := service.Create(ctx, req)
		assert.ErrorIs(t, err, ErrUnknownRepresentative)
		assert.Nil(t, msg)
	})

	t.Run("duplicate client message id", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		brandRepo := new(MockBrandRepository)
		service := NewMessageService(msgRepo, brandRepo, new(MockEnqueuer))

		clientID := "order-55"
		brandRepo.On("Get", ctx, "brand-1").Return(&model.Brand{ID: "brand-1"}, nil)
		msgRepo.On("GetByClientMessageID", ctx, "brand-1", "order-55").
			Return(&model.Message{ID: "msg-0"}, nil)

		req := validCreateRequest()
		req.ClientMessageID = &clientID
		msg, err := service.Create(ctx, req)
		assert.ErrorIs(t, err, ErrDuplicateClientID)
		assert.Nil(t, msg)
	})
}

func TestMessageService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		service := NewMessageService(msgRepo, new(MockBrandRepository), new(MockEnqueuer))

		msgRepo.On("GetByID", ctx, "msg-1").Return(&model.Message{ID: "msg-1"}, nil)

		msg, err := service.Get(ctx, "msg-1")
		require.NoError(t, err)
		assert.Equal(t, "msg-1", msg.ID)
	})

	t.Run("not found", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		service := NewMessageService(msgRepo, new(MockBrandRepository), new(MockEnqueuer))

		msgRepo.On("GetByID", ctx, "missing").Return(nil, repository.ErrNotFound)

		msg, err := service.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, msg)
	})
}

func TestMessageService_List(t *testing.T) {
	ctx := context.Background()

	msgRepo := new(MockMessageRepository)
	service := NewMessageService(msgRepo, new(MockBrandRepository), new(MockEnqueuer))

	brandID := "brand-1"
	filter := model.MessageFilter{BrandID: &brandID, Limit: 10}
	expected := []*model.Message{{ID: "msg-1"}, {ID: "msg-2"}}

	msgRepo.On("List", ctx, filter).Return(expected, int64(2), nil)

	messages, total, err := service.List(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, messages, 2)

	msgRepo.AssertExpectations(t)
}
