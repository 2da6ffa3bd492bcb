package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"algofomo-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingChain captures payout submissions and can fail from a given call
// index onwards.
type recordingChain struct {
	payouts []Payout
	failAt  int // 0 = never fail; 1-based call index otherwise
}

func (c *recordingChain) VerifyTransaction(ctx context.Context, txID, sender, receiver string, amount float64) (bool, error) {
	return true, nil
}

func (c *recordingChain) SubmitPayout(ctx context.Context, receiver string, microAlgos int64, note string) (string, error) {
	call := len(c.payouts) + 1
	if c.failAt > 0 && call >= c.failAt {
		return "", errors.New("node unreachable")
	}
	c.payouts = append(c.payouts, Payout{WalletAddress: receiver, MicroAlgos: microAlgos})
	return fmt.Sprintf("TX_%d", call), nil
}

func winningBet(id, wallet string, amount float64) models.Bet {
	return models.Bet{ID: id, Side: models.SideLeft, Amount: amount, WalletAddress: wallet}
}

func TestComputePayoutsProportionalSplit(t *testing.T) {
	// Pot 200, house cut 10% -> winners pool 180. Stakes 30/70 of a 100
	// winning total pay 54 and 126.
	bets := []models.Bet{
		winningBet("b1", "ALGO_A", 30),
		winningBet("b2", "ALGO_B", 70),
	}

	payouts := ComputePayouts(200, 0.10, bets)
	require.Len(t, payouts, 2)
	assert.Equal(t, int64(54_000_000), payouts[0].MicroAlgos)
	assert.Equal(t, int64(126_000_000), payouts[1].MicroAlgos)
}

func TestComputePayoutsNeverExceedPool(t *testing.T) {
	cases := [][]models.Bet{
		{winningBet("b1", "A", 1), winningBet("b2", "B", 1), winningBet("b3", "C", 1)},
		{winningBet("b1", "A", 0.1), winningBet("b2", "B", 0.7), winningBet("b3", "C", 3.33)},
		{winningBet("b1", "A", 123.456)},
		{winningBet("b1", "A", 99.9), winningBet("b2", "B", 0.1)},
	}

	for _, bets := range cases {
		pot := 0.0
		for _, b := range bets {
			pot += b.Amount
		}
		pot *= 2 // losing side contributed too

		payouts := ComputePayouts(pot, 0.10, bets)
		var sum int64
		for _, p := range payouts {
			require.GreaterOrEqual(t, p.MicroAlgos, int64(0))
			sum += p.MicroAlgos
		}

		poolMicro := int64(pot * 0.9 * microAlgosPerAlgo)
		// Half-up rounding per payout can drift at most one base unit per bet.
		assert.LessOrEqual(t, sum, poolMicro+int64(len(bets)))
		assert.GreaterOrEqual(t, sum, poolMicro-int64(len(bets)))
	}
}

func TestSettlementOutcomePolicies(t *testing.T) {
	ended := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	base := models.Round{ID: "round-1", PotAmount: 100, EndedAt: &ended}

	t.Run("draw retains pot", func(t *testing.T) {
		r := base
		r.Winner = models.WinnerDraw
		winning, skip := settlementOutcome(&r, []models.Bet{winningBet("b1", "A", 10)})
		assert.Nil(t, winning)
		assert.NotEmpty(t, skip)
	})

	t.Run("unset winner retains pot", func(t *testing.T) {
		r := base
		winning, skip := settlementOutcome(&r, []models.Bet{winningBet("b1", "A", 10)})
		assert.Nil(t, winning)
		assert.NotEmpty(t, skip)
	})

	t.Run("no bets retains pot", func(t *testing.T) {
		r := base
		r.Winner = models.SideLeft
		winning, skip := settlementOutcome(&r, nil)
		assert.Nil(t, winning)
		assert.NotEmpty(t, skip)
	})

	t.Run("no winning side bets retains pot", func(t *testing.T) {
		r := base
		r.Winner = models.SideRight
		winning, skip := settlementOutcome(&r, []models.Bet{winningBet("b1", "A", 10)}) // left bet only
		assert.Nil(t, winning)
		assert.NotEmpty(t, skip)
	})

	t.Run("winning bets selected", func(t *testing.T) {
		r := base
		r.Winner = models.SideLeft
		bets := []models.Bet{
			winningBet("b1", "A", 30),
			{ID: "b2", Side: models.SideRight, Amount: 70, WalletAddress: "B"},
		}
		winning, skip := settlementOutcome(&r, bets)
		assert.Empty(t, skip)
		require.Len(t, winning, 1)
		assert.Equal(t, "b1", winning[0].ID)
	})
}

func TestSettleAlreadyPaidIsNoOp(t *testing.T) {
	chain := &recordingChain{}
	svc := NewSettlementService(nil, chain, 0.10)

	paid := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	round := &models.Round{ID: "round-1", Winner: models.SideLeft, PotAmount: 100, PaidAt: &paid}

	summary, err := svc.Settle(context.Background(), round)
	require.NoError(t, err)
	assert.True(t, summary.MarkedPaid)
	assert.Equal(t, "already paid", summary.SkippedReason)
	assert.Empty(t, chain.payouts)
}

func TestDisburseSubmitsEachWinningPayout(t *testing.T) {
	chain := &recordingChain{}
	svc := NewSettlementService(nil, chain, 0.10)

	round := &models.Round{ID: "round-1", Winner: models.SideLeft, PotAmount: 200}
	summary := &SettlementSummary{
		RoundID: round.ID,
		Payouts: ComputePayouts(200, 0.10, []models.Bet{
			winningBet("b1", "ALGO_A", 30),
			winningBet("b2", "ALGO_B", 70),
		}),
	}

	require.NoError(t, svc.disburse(context.Background(), round, summary))
	require.Len(t, chain.payouts, 2)
	assert.Equal(t, int64(180_000_000), summary.DisbursedMicro)
	assert.Equal(t, "TX_1", summary.Payouts[0].TxID)
	assert.Equal(t, "TX_2", summary.Payouts[1].TxID)
}

func TestDisburseAbortsOnFirstFailure(t *testing.T) {
	chain := &recordingChain{failAt: 2}
	svc := NewSettlementService(nil, chain, 0.10)

	round := &models.Round{ID: "round-1", Winner: models.SideLeft, PotAmount: 200}
	summary := &SettlementSummary{
		RoundID: round.ID,
		Payouts: ComputePayouts(200, 0.10, []models.Bet{
			winningBet("b1", "ALGO_A", 30),
			winningBet("b2", "ALGO_B", 70),
			winningBet("b3", "ALGO_C", 100),
		}),
	}

	err := svc.disburse(context.Background(), round, summary)
	require.Error(t, err)

	// First transfer went through, the rest were never attempted.
	require.Len(t, chain.payouts, 1)
	assert.NotEmpty(t, summary.Payouts[0].TxID)
	assert.Empty(t, summary.Payouts[1].TxID)
	assert.Empty(t, summary.Payouts[2].TxID)
	assert.Equal(t, summary.Payouts[0].MicroAlgos, summary.DisbursedMicro)
}

func TestDisburseSkipsZeroPayouts(t *testing.T) {
	chain := &recordingChain{}
	svc := NewSettlementService(nil, chain, 0.10)

	round := &models.Round{ID: "round-1", Winner: models.SideLeft, PotAmount: 0}
	summary := &SettlementSummary{
		RoundID: round.ID,
		Payouts: []Payout{{BetID: "b1", WalletAddress: "A", MicroAlgos: 0}},
	}

	require.NoError(t, svc.disburse(context.Background(), round, summary))
	assert.Empty(t, chain.payouts)
	assert.Zero(t, summary.DisbursedMicro)
}
