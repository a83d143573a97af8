package helpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/nimasrn/messaging-gateway/internal/repository"
	"github.com/nimasrn/messaging-gateway/pkg/pg"
	"github.com/nimasrn/messaging-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.BrandEntity{},
		&repository.RepresentativeEntity{},
		&repository.GBMAgentEntity{},
		&repository.RCSAgentEntity{},
		&repository.SMSAgentEntity{},
		&repository.MessageEntity{},
		&repository.CapabilityEntity{},
		&repository.VSMSKeyEntity{},
	)
	require.NoError(t, err)

	return pg.NewFromGorm(db, db)
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Unique connection name per test; the adapter caches by name.
	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestBrand(t *testing.T, db *pg.DB, name string) *repository.BrandEntity {
	ctx := context.Background()
	brand := &repository.BrandEntity{
		ID:                   uuid.NewString(),
		Name:                 name,
		WebhookURL:           "https://tenant.example.com/hook",
		WebhookSigningSecret: "signing-secret",
	}
	err := db.Write(ctx).Create(brand).Error
	require.NoError(t, err)
	return brand
}

func CreateTestRepresentative(t *testing.T, db *pg.DB, brandID, name string) *repository.RepresentativeEntity {
	ctx := context.Background()
	rep := &repository.RepresentativeEntity{
		ID:      uuid.NewString(),
		BrandID: brandID,
		Name:    name,
	}
	err := db.Write(ctx).Create(rep).Error
	require.NoError(t, err)
	return rep
}

func CreateTestSMSAgent(t *testing.T, db *pg.DB, brandID, msisdn string) *repository.SMSAgentEntity {
	ctx := context.Background()
	agent := &repository.SMSAgentEntity{
		ID:           uuid.NewString(),
		BrandID:      brandID,
		MSISDN:       msisdn,
		AccountSID:   "AC" + uuid.NewString()[:8],
		AccountToken: "test-token",
	}
	err := db.Write(ctx).Create(agent).Error
	require.NoError(t, err)
	return agent
}

func CreateTestRCSAgent(t *testing.T, db *pg.DB, brandID string) *repository.RCSAgentEntity {
	ctx := context.Background()
	agent := &repository.RCSAgentEntity{
		ID:               uuid.NewString(),
		BrandID:          brandID,
		Region:           "europe",
		AccessToken:      "rcs-token",
		WebhookToken:     "hook-token",
		SubscriptionName: "subscriptions/" + uuid.NewString(),
	}
	err := db.Write(ctx).Create(agent).Error
	require.NoError(t, err)
	return agent
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
