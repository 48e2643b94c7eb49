package peerlink

import (
	"time"

	"github.com/sony/gobreaker"
)

// newFetchBreaker circuit-breaks outbound LumpRequest round-trips: a
// peer that's gone slow or unresponsive shouldn't let every local
// lump.Store.Get cache-miss queue up behind a dead connection.
func newFetchBreaker(peerID string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "peerlink-fetch:" + peerID,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}
