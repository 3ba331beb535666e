package tracking

import "time"

// Stage is a fulfillment milestone (persisted as a string).
type Stage string

const (
	StageOrderConfirmed Stage = "order_confirmed"
	StageProcessing     Stage = "processing"
	StageShipped        Stage = "shipped"
	StageOutForDelivery Stage = "out_for_delivery"
	StageDelivered      Stage = "delivered"
)

// stageLadder lists stages in fulfillment order, each with the cumulative
// time after order creation at which it is reached. Delivered is terminal.
var stageLadder = []struct {
	Stage Stage
	After time.Duration
}{
	{StageOrderConfirmed, 0},
	{StageProcessing, 24 * time.Hour},
	{StageShipped, 72 * time.Hour},
	{StageOutForDelivery, 96 * time.Hour},
	{StageDelivered, 120 * time.Hour},
}

// Index returns the position of s in the fulfillment order, or -1 for an
// unknown stage. Unknown compares below every real stage so it can never
// block a recompute.
func Index(s Stage) int {
	for i := range stageLadder {
		if stageLadder[i].Stage == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is one of the known stages.
func Valid(s Stage) bool {
	return Index(s) >= 0
}

// StageAt computes the stage reached by an order created at createdAt as of
// now. It scans the ladder in ascending order and keeps the last stage whose
// cumulative threshold has elapsed, clamping at delivered. The result depends
// only on the two instants, never on a previously computed stage.
func StageAt(createdAt, now time.Time) Stage {
	elapsed := now.Sub(createdAt)
	current := StageOrderConfirmed
	for _, step := range stageLadder {
		if elapsed >= step.After {
			current = step.Stage
		}
	}
	return current
}

// Later returns whichever of a and b is further along the ladder. It is used
// to enforce that a stored stage never regresses, including under a backward
// wall-clock adjustment.
func Later(a, b Stage) Stage {
	if Index(b) > Index(a) {
		return b
	}
	return a
}

// Terminal reports whether no further recomputation applies to s.
func Terminal(s Stage) bool {
	return s == StageDelivered
}
