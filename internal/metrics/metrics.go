package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokensIssued counts attendance tokens created by staff.
	TokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qrattend",
		Subsystem: "tokens",
		Name:      "issued_total",
		Help:      "Total attendance tokens issued",
	})

	// Redemptions counts redemption attempts by result
	// (committed, not_found, inactive, expired, error).
	Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qrattend",
		Subsystem: "tokens",
		Name:      "redemptions_total",
		Help:      "Total redemption attempts by result",
	}, []string{"result"})

	// LostRaces counts redemptions that passed preconditions but lost the
	// claim to a concurrent caller.
	LostRaces = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qrattend",
		Subsystem: "tokens",
		Name:      "lost_races_total",
		Help:      "Redemptions that lost the per-token claim race",
	})

	// GeofenceVerdicts counts location verdicts on committed redemptions
	// (within, outside, unreliable, unchecked).
	GeofenceVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qrattend",
		Subsystem: "geofence",
		Name:      "verdicts_total",
		Help:      "Location verification verdicts on committed redemptions",
	}, []string{"verdict"})
)
