package audit

import (
	"context"
	"crypto/rand"
	"log"
	"math/big"
	"time"
)

// Scheduler drives challenge generation on one cadence and audit rounds on
// another, the latter offset by half its period from the top of the hour
// to spread load (spec §4.9).
type Scheduler struct {
	generator        *ChallengeGenerator
	round            *Round
	challengeInterval time.Duration
	roundInterval    time.Duration
	logger           *log.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewScheduler constructs a Scheduler.
func NewScheduler(generator *ChallengeGenerator, round *Round, challengeInterval, roundInterval time.Duration) *Scheduler {
	return &Scheduler{
		generator:         generator,
		round:             round,
		challengeInterval: challengeInterval,
		roundInterval:     roundInterval,
		logger:            log.New(log.Writer(), "[Audit] ", log.LstdFlags),
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}
}

// Start runs both periodic activities in the background.
func (s *Scheduler) Start(ctx context.Context) {
	go s.runChallenges(ctx)
	go s.runRounds(ctx)
}

// Stop signals both loops to exit and waits for them.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
	<-s.doneCh
}

func (s *Scheduler) runChallenges(ctx context.Context) {
	defer func() { s.doneCh <- struct{}{} }()

	ticker := time.NewTicker(s.challengeInterval)
	defer ticker.Stop()

	if err := s.generator.Generate(ctx, cryptoRandInt); err != nil {
		s.logger.Printf("initial challenge generation failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.generator.Generate(ctx, cryptoRandInt); err != nil {
				s.logger.Printf("challenge generation failed: %v", err)
			}
		}
	}
}

func (s *Scheduler) runRounds(ctx context.Context) {
	defer func() { s.doneCh <- struct{}{} }()

	offset := time.Until(nextHourBoundary(time.Now())) + s.roundInterval/2
	select {
	case <-ctx.Done():
		return
	case <-s.stopCh:
		return
	case <-time.After(offset):
	}

	ticker := time.NewTicker(s.roundInterval)
	defer ticker.Stop()

	for {
		if err := s.round.Run(ctx); err != nil {
			s.logger.Printf("audit round failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
		}
	}
}

func nextHourBoundary(t time.Time) time.Time {
	return t.Truncate(time.Hour).Add(time.Hour)
}

func cryptoRandInt(n int64) (int64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}
