// Package geofence decides whether a marking attempt originates near enough
// to the classroom. Acceptance is an ordered list of named rules evaluated
// first-match-wins, so each compensation path (trusted network, coarse
// geolocation) stays independently testable.
package geofence

// coarseToleranceMeters absorbs browser IP-based geolocation error for
// devices without GPS, which is usually off by 0.5–3 km.
const coarseToleranceMeters = 3000.0

// Input is everything a rule may consider.
type Input struct {
	DistanceMeters   float64
	RadiusMeters     float64
	OnTrustedNetwork bool
}

// Result reports the verdict together with the true distance, which is always
// populated — acceptance via the trusted-network rule still logs the real
// discrepancy downstream.
type Result struct {
	Accepted       bool
	Rule           string
	DistanceMeters float64
}

type rule struct {
	name    string
	accepts func(in Input) bool
}

// acceptanceRules in priority order. First match wins.
var acceptanceRules = []rule{
	{name: "accurate-gps", accepts: func(in Input) bool {
		return in.DistanceMeters <= in.RadiusMeters
	}},
	{name: "trusted-network", accepts: func(in Input) bool {
		return in.OnTrustedNetwork
	}},
	{name: "coarse-location", accepts: func(in Input) bool {
		return in.DistanceMeters <= coarseToleranceMeters
	}},
}

// Evaluate computes the great-circle distance from the reference coordinate
// and walks the acceptance rules.
func Evaluate(reference Coordinate, radiusMeters float64, candidate Coordinate, onTrustedNetwork bool) Result {
	in := Input{
		DistanceMeters:   Haversine(reference, candidate),
		RadiusMeters:     radiusMeters,
		OnTrustedNetwork: onTrustedNetwork,
	}
	for _, r := range acceptanceRules {
		if r.accepts(in) {
			return Result{Accepted: true, Rule: r.name, DistanceMeters: in.DistanceMeters}
		}
	}
	return Result{Accepted: false, DistanceMeters: in.DistanceMeters}
}
