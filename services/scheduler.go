// services/scheduler.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartGameScheduler runs the two periodic sweeps: ending the active round
// when a condition fires, and paying out ended rounds. Both derive all state
// from the store on every tick, so re-running them is always safe.
func StartGameScheduler(rounds *RoundService, settlements *SettlementService, payoutBatch int) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: check the active round for end conditions.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			ctx := context.Background()
			round, err := rounds.ActiveRound(ctx)
			if errors.Is(err, ErrNoActiveRound) {
				return
			}
			if err != nil {
				log.Printf("[RoundEnder] DB error: %v", err)
				return
			}

			winner, reason, decided := EvaluateEndConditions(round, time.Now().UTC())
			if !decided {
				return
			}
			if _, err := rounds.EndRound(ctx, round.ID, winner, reason); err != nil {
				if errors.Is(err, ErrRoundAlreadyEnded) {
					return // another pass got there first
				}
				log.Printf("[RoundEnder] Failed to end round %s: %v", round.ID, err)
			}
		}),
	)

	// Every minute: settle a bounded batch of ended, unpaid rounds.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			ctx := context.Background()
			unpaid, err := settlements.EndedUnpaidRounds(ctx, payoutBatch)
			if err != nil {
				log.Printf("[PayoutSweep] DB error: %v", err)
				return
			}
			for i := range unpaid {
				if _, err := settlements.Settle(ctx, &unpaid[i]); err != nil {
					log.Printf("[PayoutSweep] Round %s not settled, will retry: %v", unpaid[i].ID, err)
				}
			}
		}),
	)
}
