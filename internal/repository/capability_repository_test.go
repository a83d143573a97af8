package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimasrn/messaging-gateway/internal/model"
)

func TestCapabilityRepositoryUpsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCapabilityRepository(db.DB)
	ctx := context.Background()

	record := &model.CapabilityRecord{AgentID: "agent-1", MSISDN: "+441234567890", SupportsRCS: true}
	record.SetFeatures([]string{model.FeatureRichCardStandalone, model.FeatureActionDial})

	stored, err := repo.Upsert(ctx, record)
	require.NoError(t, err)
	assert.True(t, stored.SupportsRCS)
	assert.True(t, stored.SupportsRichCardStandalone)
	assert.True(t, stored.SupportsActionDial)
	assert.False(t, stored.SupportsActionURL)

	// A re-probe fully replaces the previous flags.
	record = &model.CapabilityRecord{AgentID: "agent-1", MSISDN: "+441234567890", SupportsRCS: true}
	record.SetFeatures([]string{model.FeatureActionURL})

	stored, err = repo.Upsert(ctx, record)
	require.NoError(t, err)
	assert.True(t, stored.SupportsActionURL)
	assert.False(t, stored.SupportsRichCardStandalone, "absent feature must be cleared")

	var count int64
	require.NoError(t, db.rawDB.Model(&CapabilityEntity{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCapabilityRepositoryNegativeOutcome(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCapabilityRepository(db.DB)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, &model.CapabilityRecord{
		AgentID: "agent-1", MSISDN: "+441234567890", SupportsRCS: false,
	})
	require.NoError(t, err)

	stored, err := repo.Get(ctx, "agent-1", "+441234567890")
	require.NoError(t, err)
	assert.False(t, stored.SupportsRCS)
}

func TestCapabilityRepositoryGetNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCapabilityRepository(db.DB)

	_, err := repo.Get(context.Background(), "agent-1", "+440000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCapabilityRepositoryDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCapabilityRepository(db.DB)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, &model.CapabilityRecord{
		AgentID: "agent-1", MSISDN: "+441234567890", SupportsRCS: true,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "agent-1", "+441234567890"))
	_, err = repo.Get(ctx, "agent-1", "+441234567890")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCapabilityRepositoryListProbedBefore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCapabilityRepository(db.DB)
	ctx := context.Background()

	old := &model.CapabilityRecord{
		AgentID: "agent-1", MSISDN: "+441111111111", SupportsRCS: true,
		ProbedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	_, err := repo.Upsert(ctx, old)
	require.NoError(t, err)

	fresh := &model.CapabilityRecord{AgentID: "agent-1", MSISDN: "+442222222222", SupportsRCS: true}
	_, err = repo.Upsert(ctx, fresh)
	require.NoError(t, err)

	stale, err := repo.ListProbedBefore(ctx, time.Now().UTC().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "+441111111111", stale[0].MSISDN)
}

func TestVSMSKeyRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVSMSKeyRepository(db.DB)
	ctx := context.Background()

	_, err := repo.Get(ctx, "+441234567890")
	assert.ErrorIs(t, err, ErrNotFound)

	// Not-enrolled is stored with an empty key.
	stored, err := repo.Upsert(ctx, &model.VSMSKey{MSISDN: "+441234567890"})
	require.NoError(t, err)
	assert.Empty(t, stored.PublicKey)

	stored, err = repo.Upsert(ctx, &model.VSMSKey{MSISDN: "+441234567890", PublicKey: "BASE64KEY"})
	require.NoError(t, err)
	assert.Equal(t, "BASE64KEY", stored.PublicKey)

	var count int64
	require.NoError(t, db.rawDB.Model(&VSMSKeyEntity{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
