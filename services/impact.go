package services

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand"
	"strings"
)

// RandomSource abstracts the randomness behind impact calculation so the
// formula can be pinned down in tests.
type RandomSource interface {
	Float64() float64 // [0, 1)
}

type cryptoRNG struct{}

func (cryptoRNG) Float64() float64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		return rand.Float64()
	}
	u := binary.BigEndian.Uint64(buf[:]) >> 11 // 53 bits
	return float64(u) / (1 << 53)
}

func DefaultRNG() RandomSource { return cryptoRNG{} }

type seededRNG struct{ r *rand.Rand }

// NewSeededRNG returns a replayable source for deterministic runs.
func NewSeededRNG(seed uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewSource(int64(seed)))}
}

func (s *seededRNG) Float64() float64 { return s.r.Float64() }

const (
	maxImpact = 10.0

	promptPowerFloor = 0.5
	promptPowerCap   = 1.5

	randomFactorMin = 0.8
	randomFactorMax = 1.2
)

// ImpactCalculator turns a wager into a bounded momentum delta:
//
//	impact = clamp(log10(max(1, amount)) * promptPower * rng(0.8-1.2), 0, 10)
//	promptPower = clamp(words/10, 0.5, 1.5)
type ImpactCalculator struct {
	rng RandomSource
}

func NewImpactCalculator(rng RandomSource) *ImpactCalculator {
	if rng == nil {
		rng = DefaultRNG()
	}
	return &ImpactCalculator{rng: rng}
}

// Compute returns the momentum impact of a bet, rounded to 4 decimal places.
// Non-positive amounts yield zero; real inputs are validated upstream.
func (c *ImpactCalculator) Compute(amount float64, spell string) float64 {
	if amount <= 0 {
		return 0
	}

	logTerm := math.Log10(math.Max(1, amount))

	promptPower := float64(SpellWordCount(spell)) / 10.0
	promptPower = math.Min(math.Max(promptPowerFloor, promptPower), promptPowerCap)

	randomFactor := randomFactorMin + (randomFactorMax-randomFactorMin)*c.rng.Float64()

	impact := logTerm * promptPower * randomFactor
	impact = math.Max(0, math.Min(impact, maxImpact))

	return math.Round(impact*10000) / 10000
}

// SpellWordCount counts whitespace-separated tokens; empty spells count 0.
func SpellWordCount(spell string) int {
	return len(strings.Fields(spell))
}
