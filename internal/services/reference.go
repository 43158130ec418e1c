package services

import (
	"fmt"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	referencePrefix   = "PAY"
	referenceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	referenceRandLen  = 10
)

// ReferenceGenerator issues payment references of the form
// PAY-<unix-millis>-<10 base36 upper>. The millisecond part never goes
// backwards within a process even if the wall clock does.
type ReferenceGenerator struct {
	now  func() time.Time
	last atomic.Int64
}

// NewReferenceGenerator constructs ReferenceGenerator.
func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (g *ReferenceGenerator) WithClock(now func() time.Time) *ReferenceGenerator {
	g.now = now
	return g
}

func (g *ReferenceGenerator) Generate() (string, error) {
	random, err := gonanoid.Generate(referenceAlphabet, referenceRandLen)
	if err != nil {
		return "", fmt.Errorf("generate payment reference: %w", err)
	}
	return fmt.Sprintf("%s-%d-%s", referencePrefix, g.millis(), random), nil
}

func (g *ReferenceGenerator) millis() int64 {
	current := g.now().UnixMilli()
	for {
		last := g.last.Load()
		next := max(current, last)
		if g.last.CompareAndSwap(last, next) {
			return next
		}
	}
}
