/*
Package resilience provides the circuit breaker guarding the platform API.

# Overview

When the platform is unreachable every region sync would otherwise wait out
its full retry budget. The breaker fails fast instead, and the sync engine
records the failure on the region like any other transport error.

# Usage

	breaker := resilience.New("platform-api", resilience.Settings{
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
		IsFailure: func(err error) bool {
			var te *client.TransportError
			return errors.As(err, &te)
		},
	})

	err := breaker.Execute(func() error {
		return doRequest()
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           v
	                                         Open
*/
package resilience
