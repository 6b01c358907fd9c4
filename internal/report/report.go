package report

import (
	"math"
	"time"

	"qrattend/internal/geo"
)

// Details is the JSON-safe verification payload stored alongside a report
// and returned to callers. Non-finite sentinels from the verifier (NaN
// distance, +Inf margin) become absent fields.
type Details struct {
	LocationChecked       bool     `json:"location_checked"`
	DistanceMeters        *float64 `json:"distance_meters,omitempty"`
	ErrorMarginMeters     *float64 `json:"error_margin_meters,omitempty"`
	EffectiveRadiusMeters *float64 `json:"effective_radius_meters,omitempty"`
	Reliable              bool     `json:"is_reliable"`
	Within                bool     `json:"is_within"`
	NetworkMatch          *bool    `json:"network_match,omitempty"`
}

// DetailsFrom converts a verification result for persistence and transport.
func DetailsFrom(checked bool, res geo.Result, networkMatch *bool) Details {
	d := Details{
		LocationChecked: checked,
		Reliable:        res.Reliable,
		Within:          res.Within,
		NetworkMatch:    networkMatch,
	}
	if !checked {
		return d
	}
	d.DistanceMeters = finite(res.DistanceMeters)
	d.ErrorMarginMeters = finite(res.ErrorMarginMeters)
	d.EffectiveRadiusMeters = finite(res.EffectiveRadiusMeters)
	return d
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Record is one attendance bookkeeping entry: the outcome of a committed
// redemption, owned jointly by the token and the redeeming student.
type Record struct {
	ID         string    `json:"id"`
	TokenID    string    `json:"token_id"`
	RedeemerID string    `json:"redeemer_id"`
	SubjectID  string    `json:"subject_id"`
	SessionID  string    `json:"session_id"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Verified   bool      `json:"location_verified"`
	Details    Details   `json:"verification_details"`
	RedeemedAt time.Time `json:"redeemed_at"`
	CreatedAt  time.Time `json:"created_at"`
}
