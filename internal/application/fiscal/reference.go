package fiscal

import (
	"fmt"
	"sync/atomic"

	corefiscal "3tcapital/ms_fiscal_core/internal/core/fiscal"
)

// referenceGenerator issues {type}-{orderId}-{timestamp} codes. Timestamps are
// clock nanoseconds, bumped when needed so no two attempts share one.
type referenceGenerator struct {
	clock corefiscal.Clock
	last  atomic.Int64
}

func newReferenceGenerator(clock corefiscal.Clock) *referenceGenerator {
	return &referenceGenerator{clock: clock}
}

func (g *referenceGenerator) next(t corefiscal.DocumentType, orderID string) string {
	now := g.clock.Now().UnixNano()
	for {
		last := g.last.Load()
		ts := now
		if ts <= last {
			ts = last + 1
		}
		if g.last.CompareAndSwap(last, ts) {
			return fmt.Sprintf("%s-%s-%d", t, orderID, ts)
		}
	}
}
