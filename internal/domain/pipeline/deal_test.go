package pipeline

import (
	"testing"

	"github.com/dealflow/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDeal(t *testing.T) *Deal {
	t.Helper()
	deal, err := NewDeal("Acme Robotics Series B", "robotics", nil, "")
	require.NoError(t, err)
	return deal
}

func advanceTo(t *testing.T, deal *Deal, target DealStage) {
	t.Helper()
	path := map[DealStage][]DealStage{
		DealStageDueDiligence: {DealStageDueDiligence},
		DealStageICReview:     {DealStageDueDiligence, DealStageICReview},
		DealStageInvested:     {DealStageDueDiligence, DealStageICReview, DealStageInvested},
		DealStageClosed:       {DealStageDueDiligence, DealStageICReview, DealStageInvested, DealStageClosed},
	}
	for _, stage := range path[target] {
		require.NoError(t, deal.AdvanceStage(stage))
	}
}

// ============================================
// DealStage Tests
// ============================================

func TestDealStage_IsValid(t *testing.T) {
	tests := []struct {
		stage   DealStage
		isValid bool
	}{
		{DealStageScreening, true},
		{DealStageDueDiligence, true},
		{DealStageICReview, true},
		{DealStageInvested, true},
		{DealStageClosed, true},
		{DealStagePassed, true},
		{DealStage("sourcing"), false},
		{DealStage(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.stage.IsValid())
		})
	}
}

func TestDealStage_IsInvestable(t *testing.T) {
	tests := []struct {
		stage        DealStage
		isInvestable bool
	}{
		{DealStageScreening, false},
		{DealStageDueDiligence, false},
		{DealStageICReview, false},
		{DealStageInvested, true},
		{DealStageClosed, false},
		{DealStagePassed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			assert.Equal(t, tt.isInvestable, tt.stage.IsInvestable())
		})
	}
}

func TestDealStage_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    DealStage
		to      DealStage
		allowed bool
	}{
		{"screening to due diligence", DealStageScreening, DealStageDueDiligence, true},
		{"screening to passed", DealStageScreening, DealStagePassed, true},
		{"screening cannot skip to invested", DealStageScreening, DealStageInvested, false},
		{"due diligence to ic review", DealStageDueDiligence, DealStageICReview, true},
		{"ic review to invested", DealStageICReview, DealStageInvested, true},
		{"ic review to passed", DealStageICReview, DealStagePassed, true},
		{"invested to closed", DealStageInvested, DealStageClosed, true},
		{"invested cannot pass", DealStageInvested, DealStagePassed, false},
		{"closed is terminal", DealStageClosed, DealStageInvested, false},
		{"passed is terminal", DealStagePassed, DealStageScreening, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

// ============================================
// Deal Tests
// ============================================

func TestNewDeal(t *testing.T) {
	t.Run("creates deal in screening stage", func(t *testing.T) {
		target := valueobject.NewMoneyUSDFromFloat(5000000)
		deal, err := NewDeal("Acme Robotics Series B", "robotics", &target, "warm intro")
		require.NoError(t, err)

		assert.Equal(t, "Acme Robotics Series B", deal.Name)
		assert.Equal(t, DealStageScreening, deal.Stage)
		assert.False(t, deal.IsInvestable())
		require.NotNil(t, deal.GetTargetRaiseMoney())
		assert.Equal(t, "5000000.00 USD", deal.GetTargetRaiseMoney().String())
		assert.Len(t, deal.GetDomainEvents(), 1)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewDeal("", "robotics", nil, "")
		assert.Error(t, err)
	})

	t.Run("rejects non-positive target raise", func(t *testing.T) {
		target := valueobject.ZeroUSD()
		_, err := NewDeal("Acme", "robotics", &target, "")
		assert.Error(t, err)
	})
}

func TestDeal_AdvanceStage(t *testing.T) {
	t.Run("walks the full pipeline to invested", func(t *testing.T) {
		deal := createTestDeal(t)
		advanceTo(t, deal, DealStageInvested)

		assert.Equal(t, DealStageInvested, deal.Stage)
		assert.True(t, deal.IsInvestable())
	})

	t.Run("rejects skipping stages", func(t *testing.T) {
		deal := createTestDeal(t)
		err := deal.AdvanceStage(DealStageInvested)
		require.Error(t, err)
		assert.Equal(t, DealStageScreening, deal.Stage)
	})

	t.Run("passed deal cannot move again", func(t *testing.T) {
		deal := createTestDeal(t)
		require.NoError(t, deal.AdvanceStage(DealStagePassed))
		assert.Error(t, deal.AdvanceStage(DealStageDueDiligence))
	})

	t.Run("emits stage changed event", func(t *testing.T) {
		deal := createTestDeal(t)
		deal.ClearDomainEvents()

		require.NoError(t, deal.AdvanceStage(DealStageDueDiligence))
		events := deal.GetDomainEvents()
		require.Len(t, events, 1)

		changed, ok := events[0].(*DealStageChangedEvent)
		require.True(t, ok)
		assert.Equal(t, DealStageScreening, changed.OldStage)
		assert.Equal(t, DealStageDueDiligence, changed.NewStage)
	})
}

func TestDeal_Update(t *testing.T) {
	deal := createTestDeal(t)
	require.NoError(t, deal.Update("Acme Robotics Series C", "deep tech", "follow-on"))

	assert.Equal(t, "Acme Robotics Series C", deal.Name)
	assert.Equal(t, "deep tech", deal.Sector)
	assert.Equal(t, "follow-on", deal.Description)

	assert.Error(t, deal.Update("", "deep tech", ""))
}
