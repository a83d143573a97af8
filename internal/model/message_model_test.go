package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from MessageState
		to   MessageState
		want bool
	}{
		{"accepted to dispatched", StateAccepted, StateDispatched, true},
		{"dispatched to delivered", StateDispatched, StateDelivered, true},
		{"dispatched to read", StateDispatched, StateRead, true},
		{"delivered to read", StateDelivered, StateRead, true},
		{"accepted to failed", StateAccepted, StateFailed, true},
		{"dispatched to failed", StateDispatched, StateFailed, true},
		{"delivered to failed", StateDelivered, StateFailed, true},

		{"delivered to dispatched is a downgrade", StateDelivered, StateDispatched, false},
		{"read to delivered is a downgrade", StateRead, StateDelivered, false},
		{"dispatched to accepted is a downgrade", StateDispatched, StateAccepted, false},
		{"dispatched to dispatched is not forward", StateDispatched, StateDispatched, false},
		{"read is terminal", StateRead, StateFailed, false},
		{"failed is terminal", StateFailed, StateDispatched, false},
		{"failed stays failed", StateFailed, StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStateNeverDecreasesUnderReceiptSequences(t *testing.T) {
	// Apply every permutation of receipt events to a dispatched message
	// and check the realized state only moves forward.
	sequences := [][]MessageState{
		{StateDelivered, StateRead},
		{StateRead, StateDelivered},
		{StateDelivered, StateDelivered, StateRead},
		{StateRead, StateRead},
		{StateDelivered, StateDispatched, StateRead},
	}

	for _, seq := range sequences {
		state := StateDispatched
		prevRank := state.rank()
		for _, ev := range seq {
			if CanTransition(state, ev) {
				state = ev
			}
			assert.GreaterOrEqual(t, state.rank(), prevRank)
			prevRank = state.rank()
		}
		assert.Equal(t, StateRead, state)
	}
}

func TestChannelValid(t *testing.T) {
	assert.True(t, ChannelGBM.Valid())
	assert.True(t, ChannelRCS.Valid())
	assert.True(t, ChannelSMS.Valid())
	assert.False(t, Channel("telegram").Valid())
	assert.False(t, Channel("").Valid())
}

func TestMessageCreateRequestValidate(t *testing.T) {
	valid := MessageCreateRequest{
		BrandID:                "brand-1",
		Channel:                ChannelRCS,
		PlatformConversationID: "+447700900123",
		MediaType:              MediaText,
	}
	assert.NoError(t, valid.Validate())

	missingBrand := valid
	missingBrand.BrandID = ""
	assert.Error(t, missingBrand.Validate())

	badChannel := valid
	badChannel.Channel = "carrier-pigeon"
	assert.Error(t, badChannel.Validate())

	missingConversation := valid
	missingConversation.PlatformConversationID = ""
	assert.Error(t, missingConversation.Validate())

	missingMedia := valid
	missingMedia.MediaType = ""
	assert.Error(t, missingMedia.Validate())
}
