package report

import (
	"encoding/json"
	"math"
	"testing"

	"qrattend/internal/geo"
)

func TestDetailsFromDropsSentinels(t *testing.T) {
	res := geo.Result{
		DistanceMeters:    math.NaN(),
		ErrorMarginMeters: math.Inf(1),
	}
	d := DetailsFrom(true, res, nil)
	if d.DistanceMeters != nil || d.ErrorMarginMeters != nil {
		t.Fatalf("sentinel values must marshal as absent fields: %+v", d)
	}
	if d.Reliable || d.Within {
		t.Fatalf("unreliable result must stay non-passing: %+v", d)
	}
	if _, err := json.Marshal(d); err != nil {
		t.Fatalf("details must always be JSON-safe: %v", err)
	}
}

func TestDetailsFromUnchecked(t *testing.T) {
	within := geo.Result{DistanceMeters: 3, Reliable: true, Within: true, EffectiveRadiusMeters: 100}
	d := DetailsFrom(false, geo.Result{}, nil)
	if d.LocationChecked || d.DistanceMeters != nil {
		t.Fatalf("unchecked redemption must carry no distance: %+v", d)
	}

	match := true
	d = DetailsFrom(true, within, &match)
	if d.DistanceMeters == nil || *d.DistanceMeters != 3 {
		t.Fatalf("checked redemption must carry the distance: %+v", d)
	}
	if d.NetworkMatch == nil || !*d.NetworkMatch {
		t.Fatalf("network hint lost: %+v", d)
	}
}
