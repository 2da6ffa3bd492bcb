package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"algofomo-backend/config"
	"algofomo-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNoActiveRound     = errors.New("no active round")
	ErrRoundNotActive    = errors.New("round is not active")
	ErrRoundMismatch     = errors.New("bet does not reference the active round")
	ErrRoundAlreadyEnded = errors.New("round already ended")
	ErrTxUnverified      = errors.New("deposit transaction could not be verified")
	ErrInvalidMomentum   = errors.New("initial_momentum must be between 0 and 100")
)

type RoundService struct {
	DB          *gorm.DB
	Cfg         *config.Config
	Chain       ChainClient
	Impact      *ImpactCalculator
	Settlements *SettlementService
}

func NewRoundService(db *gorm.DB, cfg *config.Config, chain ChainClient, impact *ImpactCalculator, settlements *SettlementService) *RoundService {
	return &RoundService{DB: db, Cfg: cfg, Chain: chain, Impact: impact, Settlements: settlements}
}

// BetRequest is a bet as submitted by a client, before verification.
type BetRequest struct {
	RoundID       string  `json:"round_id"`
	Side          string  `json:"side"`
	Amount        float64 `json:"amount"`
	Spell         string  `json:"spell"`
	WalletAddress string  `json:"wallet_address"`
	TxID          string  `json:"tx_id"`
}

const maxSpellWords = 10

func (r BetRequest) Validate() error {
	if r.RoundID == "" {
		return errors.New("round_id is required")
	}
	if r.Side != models.SideLeft && r.Side != models.SideRight {
		return errors.New("side must be 'left' or 'right'")
	}
	if r.Amount <= 0 {
		return errors.New("bet amount must be greater than zero")
	}
	if SpellWordCount(r.Spell) > maxSpellWords {
		return fmt.Errorf("spell must be %d words or less", maxSpellWords)
	}
	if r.WalletAddress == "" {
		return errors.New("wallet_address is required")
	}
	if r.TxID == "" {
		return errors.New("tx_id of the deposit transaction is required")
	}
	return nil
}

// CreateRound ends any currently active round (ended_at set, no winner) and
// inserts a fresh one. The deactivate-then-create pair is intentionally not
// one transaction; a bet racing the gap is rejected by PlaceBet's round
// checks.
func (s *RoundService) CreateRound(ctx context.Context, left, right models.FighterProfile, initialMomentum int) (*models.Round, error) {
	if initialMomentum < 0 || initialMomentum > 100 {
		return nil, ErrInvalidMomentum
	}

	now := time.Now().UTC()
	res := s.DB.WithContext(ctx).Model(&models.Round{}).
		Where("active = ?", true).
		Updates(map[string]interface{}{"active": false, "ended_at": now})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to deactivate active rounds: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("⚔️  Deactivated %d previously active round(s)", res.RowsAffected)
	}

	currentDeadline := now.Add(s.Cfg.InactivityTimeout())
	maxDeadline := now.Add(s.Cfg.MaxRoundDuration())
	if currentDeadline.After(maxDeadline) {
		currentDeadline = maxDeadline
	}

	round := &models.Round{
		ID:               uuid.NewString(),
		LeftHandle:       left.Handle,
		LeftAvatarURL:    left.AvatarURL,
		LeftDisplayName:  left.DisplayName,
		RightHandle:      right.Handle,
		RightAvatarURL:   right.AvatarURL,
		RightDisplayName: right.DisplayName,
		Momentum:         initialMomentum,
		PotAmount:        0,
		StartTime:        now,
		CurrentDeadline:  currentDeadline,
		MaxDeadline:      maxDeadline,
		Active:           true,
	}

	if err := s.DB.WithContext(ctx).Create(round).Error; err != nil {
		return nil, fmt.Errorf("failed to create round: %w", err)
	}
	log.Printf("⚔️  New round %s: %s vs %s, momentum %d", round.ID, left.Handle, right.Handle, initialMomentum)
	return round, nil
}

// ActiveRound returns the single active round, or ErrNoActiveRound.
func (s *RoundService) ActiveRound(ctx context.Context) (*models.Round, error) {
	var round models.Round
	err := s.DB.WithContext(ctx).
		Where("active = ?", true).
		Order("start_time DESC").
		First(&round).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveRound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active round: %w", err)
	}
	return &round, nil
}

// PlaceBet verifies the deposit transaction, then applies the bet to the
// round under a row lock so concurrent bets on the same round serialize.
func (s *RoundService) PlaceBet(ctx context.Context, req BetRequest) (*models.Bet, *models.Round, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	verified, err := s.Chain.VerifyTransaction(ctx, req.TxID, req.WalletAddress, s.Cfg.TreasuryAddress, req.Amount)
	if err != nil {
		return nil, nil, fmt.Errorf("transaction verification failed: %w", err)
	}
	if !verified {
		return nil, nil, ErrTxUnverified
	}

	impact := s.Impact.Compute(req.Amount, req.Spell)

	var (
		bet   *models.Bet
		round models.Round
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SELECT ... FOR UPDATE: pot/momentum/deadline updates on the same
		// round must not interleave.
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&round, "id = ?", req.RoundID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoundMismatch
		}
		if err != nil {
			return err
		}
		if !round.Active {
			return ErrRoundNotActive
		}

		now := time.Now().UTC()
		applyBet(&round, req.Amount, req.Side, impact, s.Cfg.BetTimeExtension())
		if err := tx.Save(&round).Error; err != nil {
			return err
		}

		bet = &models.Bet{
			ID:            uuid.NewString(),
			RoundID:       round.ID,
			Side:          req.Side,
			Amount:        req.Amount,
			Spell:         req.Spell,
			WalletAddress: req.WalletAddress,
			Impact:        impact,
			Processed:     true,
			TxID:          req.TxID,
			Timestamp:     now,
		}
		return tx.Create(bet).Error
	})
	if err != nil {
		return nil, nil, err
	}

	log.Printf("💰 Bet %s on round %s: %s %.4f (impact %.4f) -> momentum %d",
		bet.ID, round.ID, bet.Side, bet.Amount, bet.Impact, round.Momentum)
	return bet, &round, nil
}

// applyBet mutates a locked round with an accepted bet: pot grows, momentum
// shifts toward the bet's side, the inactivity deadline is pushed out up to
// the max deadline.
func applyBet(r *models.Round, amount float64, side string, impact float64, extension time.Duration) {
	r.PotAmount += amount
	r.Momentum = shiftMomentum(r.Momentum, side, impact)

	newDeadline := r.CurrentDeadline.Add(extension)
	if newDeadline.After(r.MaxDeadline) {
		newDeadline = r.MaxDeadline
	}
	r.CurrentDeadline = newDeadline
}

// shiftMomentum moves momentum by impact (left pulls down, right pushes up),
// rounded to the nearest integer and clamped to [0, 100].
func shiftMomentum(momentum int, side string, impact float64) int {
	shifted := float64(momentum)
	if side == models.SideLeft {
		shifted -= impact
	} else {
		shifted += impact
	}
	next := int(math.Round(shifted))
	if next < 0 {
		return 0
	}
	if next > 100 {
		return 100
	}
	return next
}

// EvaluateEndConditions decides whether a round should end at `now`.
// Momentum extremes always win over timeouts; timeouts pick the side closer
// to its goal, or a draw at exactly 50.
func EvaluateEndConditions(r *models.Round, now time.Time) (winner, reason string, decided bool) {
	switch {
	case r.Momentum <= 0:
		return models.SideLeft, models.EndReasonMomentum, true
	case r.Momentum >= 100:
		return models.SideRight, models.EndReasonMomentum, true
	case !now.Before(r.MaxDeadline):
		return momentumProximityWinner(r.Momentum), models.EndReasonMaxDuration, true
	case !now.Before(r.CurrentDeadline):
		return momentumProximityWinner(r.Momentum), models.EndReasonInactivity, true
	default:
		return "", "", false
	}
}

func momentumProximityWinner(momentum int) string {
	switch {
	case momentum < 50:
		return models.SideLeft
	case momentum > 50:
		return models.SideRight
	default:
		return models.WinnerDraw
	}
}

// markEnded transitions a round to its terminal state exactly once.
func markEnded(r *models.Round, winner, reason string, now time.Time) error {
	if !r.Active {
		return ErrRoundAlreadyEnded
	}
	r.Active = false
	r.Winner = winner
	r.EndReason = reason
	endedAt := now
	r.EndedAt = &endedAt
	return nil
}

// EndRound ends the round with the given verdict. Calling it on an already
// ended round returns ErrRoundAlreadyEnded and changes nothing.
func (s *RoundService) EndRound(ctx context.Context, roundID, winner, reason string) (*models.Round, error) {
	var round models.Round
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&round, "id = ?", roundID).Error; err != nil {
			return err
		}
		if err := markEnded(&round, winner, reason, time.Now().UTC()); err != nil {
			return err
		}
		return tx.Save(&round).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("🏁 Round %s ended: winner=%s reason=%s momentum=%d pot=%.4f",
		round.ID, winner, reason, round.Momentum, round.PotAmount)
	return &round, nil
}

// GameState is the aggregate view served to clients.
type GameState struct {
	Round               models.Round `json:"round"`
	RecentBets          []models.Bet `json:"recent_bets"`
	TotalBetsCount      int          `json:"total_bets_count"`
	LeftSideBetsAmount  float64      `json:"left_side_bets_amount"`
	RightSideBetsAmount float64      `json:"right_side_bets_amount"`
}

const recentBetsLimit = 10

// GetActiveState returns the active round with recent bets and per-side
// wagered totals, or ErrNoActiveRound.
func (s *RoundService) GetActiveState(ctx context.Context) (*GameState, error) {
	round, err := s.ActiveRound(ctx)
	if err != nil {
		return nil, err
	}

	var bets []models.Bet
	if err := s.DB.WithContext(ctx).
		Where("round_id = ?", round.ID).
		Order("timestamp DESC").
		Find(&bets).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch bets for round %s: %w", round.ID, err)
	}

	state := &GameState{
		Round:          *round,
		TotalBetsCount: len(bets),
	}
	for _, b := range bets {
		if b.Side == models.SideLeft {
			state.LeftSideBetsAmount += b.Amount
		} else {
			state.RightSideBetsAmount += b.Amount
		}
	}
	if len(bets) > recentBetsLimit {
		bets = bets[:recentBetsLimit]
	}
	state.RecentBets = bets
	return state, nil
}

// PastRounds lists ended rounds, newest first.
func (s *RoundService) PastRounds(ctx context.Context, limit, offset int) ([]models.Round, error) {
	var rounds []models.Round
	err := s.DB.WithContext(ctx).
		Where("active = ?", false).
		Order("start_time DESC").
		Limit(limit).Offset(offset).
		Find(&rounds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch past rounds: %w", err)
	}
	return rounds, nil
}

// BetsForRound lists a round's bets, newest first.
func (s *RoundService) BetsForRound(ctx context.Context, roundID string, limit, offset int) ([]models.Bet, error) {
	var bets []models.Bet
	err := s.DB.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("timestamp DESC").
		Limit(limit).Offset(offset).
		Find(&bets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bets for round %s: %w", roundID, err)
	}
	return bets, nil
}
