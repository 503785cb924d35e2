package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrOpen is returned while a breaker rejects calls.
var ErrOpen = eris.New("resilience: circuit open")

// Breaker stops calls to a provider after Threshold consecutive failures and
// lets a single probe through once Cooldown has passed.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed breaker. Non-positive arguments take the
// defaults of 5 failures and 30s.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Open reports whether calls are currently rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold && b.now().Sub(b.openedAt) < b.cooldown
}

// Do runs fn unless the breaker is open. Only errors accepted by counts are
// recorded as failures; a nil counts treats every error as one.
func (b *Breaker) Do(fn func() error, counts func(error) bool) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := fn()
	b.record(err != nil && (counts == nil || counts(err)))
	return err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cooldown || b.probing {
		return eris.Wrapf(ErrOpen, "%s", b.name)
	}
	b.probing = true
	return nil
}

func (b *Breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	wasOpen := b.failures >= b.threshold
	b.probing = false

	if !failed {
		if wasOpen {
			zap.L().Info("resilience: circuit closed", zap.String("breaker", b.name))
		}
		b.failures = 0
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		if !wasOpen {
			zap.L().Warn("resilience: circuit opened",
				zap.String("breaker", b.name),
				zap.Int("failures", b.failures),
			)
		}
		b.openedAt = b.now()
	}
}
