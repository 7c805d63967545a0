// internal/auction/ladder.go
package auction

// Increment returns the mandatory raise above the given bid. The ladder is
// fixed: +5 below 50, +10 below 100, +20 below 200, +25 below 500, +50 from
// there up. Bids are only valid at exact rungs, never in between.
func Increment(current int) int {
	switch {
	case current < 50:
		return 5
	case current < 100:
		return 10
	case current < 200:
		return 20
	case current < 500:
		return 25
	default:
		return 50
	}
}
