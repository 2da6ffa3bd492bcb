package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"algofomo-backend/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// microAlgosPerAlgo converts pot amounts to the chain's integral base unit.
const microAlgosPerAlgo = 1_000_000

type SettlementService struct {
	DB       *gorm.DB
	Chain    ChainClient
	HouseCut float64
}

func NewSettlementService(db *gorm.DB, chain ChainClient, houseCut float64) *SettlementService {
	return &SettlementService{DB: db, Chain: chain, HouseCut: houseCut}
}

// Payout is one winning bet's share of the pot.
type Payout struct {
	BetID         string `json:"bet_id"`
	WalletAddress string `json:"wallet_address"`
	MicroAlgos    int64  `json:"amount_microalgos"`
	TxID          string `json:"tx_id,omitempty"`
}

// SettlementSummary reports what a Settle call did (or why it did nothing).
type SettlementSummary struct {
	RoundID        string   `json:"round_id"`
	Winner         string   `json:"winner,omitempty"`
	PotAmount      float64  `json:"pot_amount"`
	WinnersPool    float64  `json:"winners_pool"`
	Payouts        []Payout `json:"payouts,omitempty"`
	DisbursedMicro int64    `json:"disbursed_microalgos"`
	SkippedReason  string   `json:"skipped_reason,omitempty"`
	MarkedPaid     bool     `json:"marked_paid"`
}

// Settle pays out an ended round. The round is marked paid only when every
// transfer succeeds; any failure aborts and leaves it for the next sweep.
// Draws, winnerless rounds and rounds without winning bets are marked paid
// with nothing disbursed — the pot stays with the house by policy.
func (s *SettlementService) Settle(ctx context.Context, round *models.Round) (*SettlementSummary, error) {
	summary := &SettlementSummary{
		RoundID:   round.ID,
		Winner:    round.Winner,
		PotAmount: round.PotAmount,
	}

	if round.PaidAt != nil {
		summary.SkippedReason = "already paid"
		summary.MarkedPaid = true
		return summary, nil
	}

	var bets []models.Bet
	if err := s.DB.WithContext(ctx).Where("round_id = ?", round.ID).Find(&bets).Error; err != nil {
		return summary, fmt.Errorf("failed to fetch bets for round %s: %w", round.ID, err)
	}

	winningBets, skipReason := settlementOutcome(round, bets)
	if skipReason != "" {
		log.Printf("💸 Round %s: %s, marking paid with zero disbursed", round.ID, skipReason)
		summary.SkippedReason = skipReason
		if err := s.markPaid(ctx, round); err != nil {
			return summary, err
		}
		summary.MarkedPaid = true
		return summary, nil
	}

	summary.WinnersPool = winnersPool(round.PotAmount, s.HouseCut)
	summary.Payouts = ComputePayouts(round.PotAmount, s.HouseCut, winningBets)

	if err := s.disburse(ctx, round, summary); err != nil {
		return summary, err
	}

	if err := s.markPaid(ctx, round); err != nil {
		return summary, err
	}
	summary.MarkedPaid = true
	log.Printf("💸 Round %s settled: %d payout(s), %d microAlgos disbursed",
		round.ID, len(summary.Payouts), summary.DisbursedMicro)
	return summary, nil
}

// settlementOutcome picks the winning bets, or a reason to retain the pot.
func settlementOutcome(round *models.Round, bets []models.Bet) ([]models.Bet, string) {
	if round.Winner == "" || round.Winner == models.WinnerDraw {
		return nil, fmt.Sprintf("no payable winner (%q)", round.Winner)
	}
	if len(bets) == 0 {
		return nil, "no bets placed"
	}

	var winning []models.Bet
	total := 0.0
	for _, b := range bets {
		if b.Side == round.Winner {
			winning = append(winning, b)
			total += b.Amount
		}
	}
	if len(winning) == 0 {
		return nil, fmt.Sprintf("no bets on winning side %q", round.Winner)
	}
	if total <= 0 {
		return nil, "winning side total is zero"
	}
	return winning, ""
}

func winnersPool(pot, houseCut float64) float64 {
	pool, _ := decimal.NewFromFloat(pot).
		Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(houseCut))).
		Float64()
	return pool
}

// ComputePayouts splits the winners' pool proportionally to each winning
// bet's stake, converted to microAlgos with half-up rounding.
func ComputePayouts(pot, houseCut float64, winningBets []models.Bet) []Payout {
	potD := decimal.NewFromFloat(pot)
	poolD := potD.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(houseCut)))

	totalD := decimal.Zero
	for _, b := range winningBets {
		totalD = totalD.Add(decimal.NewFromFloat(b.Amount))
	}

	payouts := make([]Payout, 0, len(winningBets))
	for _, b := range winningBets {
		share := poolD.Mul(decimal.NewFromFloat(b.Amount)).Div(totalD)
		micro := share.Mul(decimal.NewFromInt(microAlgosPerAlgo)).Round(0).IntPart()
		payouts = append(payouts, Payout{
			BetID:         b.ID,
			WalletAddress: b.WalletAddress,
			MicroAlgos:    micro,
		})
	}
	return payouts
}

// disburse submits payouts one by one, stopping at the first failure so the
// round stays unpaid and the sweep retries it later.
func (s *SettlementService) disburse(ctx context.Context, round *models.Round, summary *SettlementSummary) error {
	for i := range summary.Payouts {
		p := &summary.Payouts[i]
		if p.MicroAlgos <= 0 {
			continue
		}
		note := fmt.Sprintf("AlgoFOMO round %s payout - bet %s", round.ID, p.BetID)
		txID, err := s.Chain.SubmitPayout(ctx, p.WalletAddress, p.MicroAlgos, note)
		if err != nil {
			return fmt.Errorf("payout to %s failed for round %s: %w", p.WalletAddress, round.ID, err)
		}
		p.TxID = txID
		summary.DisbursedMicro += p.MicroAlgos
	}
	return nil
}

func (s *SettlementService) markPaid(ctx context.Context, round *models.Round) error {
	now := time.Now().UTC()
	err := s.DB.WithContext(ctx).Model(&models.Round{}).
		Where("id = ? AND paid_at IS NULL", round.ID).
		Update("paid_at", now).Error
	if err != nil {
		return fmt.Errorf("failed to mark round %s as paid: %w", round.ID, err)
	}
	round.PaidAt = &now
	return nil
}

// EndedUnpaidRounds fetches up to limit ended rounds still awaiting payout,
// oldest first.
func (s *SettlementService) EndedUnpaidRounds(ctx context.Context, limit int) ([]models.Round, error) {
	var rounds []models.Round
	err := s.DB.WithContext(ctx).
		Where("active = ? AND ended_at IS NOT NULL AND paid_at IS NULL", false).
		Order("ended_at ASC").
		Limit(limit).
		Find(&rounds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unpaid rounds: %w", err)
	}
	return rounds, nil
}
