package services

import (
	"testing"
	"time"

	"algofomo-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRound(momentum int) *models.Round {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &models.Round{
		ID:              "round-1",
		Momentum:        momentum,
		StartTime:       start,
		CurrentDeadline: start.Add(20 * time.Minute),
		MaxDeadline:     start.Add(24 * time.Hour),
		Active:          true,
	}
}

func TestApplyBetShiftsMomentumPotAndDeadline(t *testing.T) {
	r := testRound(50)
	deadlineBefore := r.CurrentDeadline

	applyBet(r, 100, models.SideLeft, 1.0, time.Minute)

	assert.Equal(t, 49, r.Momentum)
	assert.Equal(t, 100.0, r.PotAmount)
	assert.Equal(t, deadlineBefore.Add(time.Minute), r.CurrentDeadline)
}

func TestApplyBetDeadlineCappedAtMax(t *testing.T) {
	r := testRound(50)
	r.CurrentDeadline = r.MaxDeadline.Add(-30 * time.Second)

	applyBet(r, 10, models.SideRight, 2.0, time.Minute)

	assert.Equal(t, r.MaxDeadline, r.CurrentDeadline)
}

func TestApplyBetPotOnlyGrows(t *testing.T) {
	r := testRound(50)
	applyBet(r, 5, models.SideLeft, 0.5, time.Minute)
	applyBet(r, 7.5, models.SideRight, 0.5, time.Minute)
	assert.Equal(t, 12.5, r.PotAmount)
}

func TestShiftMomentumClamps(t *testing.T) {
	// Right pushes up without clamping...
	assert.Equal(t, 7, shiftMomentum(2, models.SideRight, 5))
	// ...then a big left swing clamps at 0.
	assert.Equal(t, 0, shiftMomentum(7, models.SideLeft, 10))
	// Upper clamp.
	assert.Equal(t, 100, shiftMomentum(99, models.SideRight, 5))
	// Fractional impacts round to nearest.
	assert.Equal(t, 49, shiftMomentum(50, models.SideLeft, 1.4))
	assert.Equal(t, 48, shiftMomentum(50, models.SideLeft, 1.6))
}

func TestEvaluateEndConditions(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	midRound := start.Add(5 * time.Minute)
	pastInactivity := start.Add(21 * time.Minute)
	pastMax := start.Add(25 * time.Hour)

	tests := []struct {
		name     string
		momentum int
		now      time.Time
		winner   string
		reason   string
		decided  bool
	}{
		{"momentum zero wins left", 0, midRound, models.SideLeft, models.EndReasonMomentum, true},
		{"momentum hundred wins right", 100, midRound, models.SideRight, models.EndReasonMomentum, true},
		// Momentum check takes precedence over an expired deadline.
		{"momentum beats timeout", 0, pastMax, models.SideLeft, models.EndReasonMomentum, true},
		{"max duration right leaning", 70, pastMax, models.SideRight, models.EndReasonMaxDuration, true},
		{"max duration left leaning", 30, pastMax, models.SideLeft, models.EndReasonMaxDuration, true},
		{"max duration neutral is a draw", 50, pastMax, models.WinnerDraw, models.EndReasonMaxDuration, true},
		{"inactivity left leaning", 40, pastInactivity, models.SideLeft, models.EndReasonInactivity, true},
		{"inactivity right leaning", 60, pastInactivity, models.SideRight, models.EndReasonInactivity, true},
		{"inactivity neutral is a draw", 50, pastInactivity, models.WinnerDraw, models.EndReasonInactivity, true},
		{"mid round keeps going", 50, midRound, "", "", false},
		{"leaning but alive", 75, midRound, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRound(tt.momentum)
			winner, reason, decided := EvaluateEndConditions(r, tt.now)
			assert.Equal(t, tt.decided, decided)
			assert.Equal(t, tt.winner, winner)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestMarkEndedSetsTerminalStateOnce(t *testing.T) {
	r := testRound(70)
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	require.NoError(t, markEnded(r, models.SideRight, models.EndReasonMaxDuration, now))
	assert.False(t, r.Active)
	assert.Equal(t, models.SideRight, r.Winner)
	assert.Equal(t, models.EndReasonMaxDuration, r.EndReason)
	require.NotNil(t, r.EndedAt)
	assert.Equal(t, now, *r.EndedAt)

	// A second end attempt is rejected and changes nothing.
	err := markEnded(r, models.SideLeft, models.EndReasonAdmin, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrRoundAlreadyEnded)
	assert.Equal(t, models.SideRight, r.Winner)
	assert.Equal(t, now, *r.EndedAt)
}

func TestMomentumProximityWinner(t *testing.T) {
	assert.Equal(t, models.SideLeft, momentumProximityWinner(0))
	assert.Equal(t, models.SideLeft, momentumProximityWinner(49))
	assert.Equal(t, models.WinnerDraw, momentumProximityWinner(50))
	assert.Equal(t, models.SideRight, momentumProximityWinner(51))
	assert.Equal(t, models.SideRight, momentumProximityWinner(100))
}

func TestBetRequestValidate(t *testing.T) {
	valid := BetRequest{
		RoundID:       "round-1",
		Side:          models.SideLeft,
		Amount:        5,
		Spell:         "fire and ice battle now",
		WalletAddress: "ALGO123",
		TxID:          "TX1",
	}
	assert.NoError(t, valid.Validate())

	badSide := valid
	badSide.Side = "middle"
	assert.Error(t, badSide.Validate())

	zeroAmount := valid
	zeroAmount.Amount = 0
	assert.Error(t, zeroAmount.Validate())

	longSpell := valid
	longSpell.Spell = "one two three four five six seven eight nine ten eleven"
	assert.Error(t, longSpell.Validate())

	noWallet := valid
	noWallet.WalletAddress = ""
	assert.Error(t, noWallet.Validate())

	noTx := valid
	noTx.TxID = ""
	assert.Error(t, noTx.Validate())
}
