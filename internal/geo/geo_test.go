package geo

import (
	"math"
	"testing"
)

var (
	nyc         = Point{Lat: 40.7128, Lon: -74.0060}
	timesSquare = Point{Lat: 40.7580, Lon: -73.9855}
)

func TestDistanceKnownPair(t *testing.T) {
	res := Distance(nyc, timesSquare)
	if !res.Reliable {
		t.Fatalf("expected reliable result, got %+v", res)
	}
	if res.DistanceMeters < 5500 || res.DistanceMeters > 6400 {
		t.Fatalf("NYC to Times Square distance = %.2f m, want 5500-6400 m", res.DistanceMeters)
	}
	if res.ErrorMarginMeters != 0 {
		t.Fatalf("error margin = %.2f, want 0 for bare points", res.ErrorMarginMeters)
	}
}

func TestDistanceIdentity(t *testing.T) {
	res := Distance(nyc, nyc)
	if math.Abs(res.DistanceMeters) > 1e-6 {
		t.Fatalf("distance to self = %g, want 0", res.DistanceMeters)
	}
	if !res.Reliable {
		t.Fatalf("distance to self should be reliable")
	}
}

func TestDistanceSymmetry(t *testing.T) {
	ab := Distance(nyc, timesSquare)
	ba := Distance(timesSquare, nyc)
	if ab.DistanceMeters != ba.DistanceMeters {
		t.Fatalf("distance not symmetric: %v vs %v", ab.DistanceMeters, ba.DistanceMeters)
	}
}

func TestDistanceInvalidInput(t *testing.T) {
	bad := []Point{
		NewPoint(nil, nil),
		{Lat: math.NaN(), Lon: -74},
		{Lat: 40, Lon: math.Inf(1)},
		{Lat: 91, Lon: 0},
		{Lat: -91, Lon: 0},
		{Lat: 0, Lon: 181},
		{Lat: 0, Lon: -181},
	}
	for _, p := range bad {
		res := Distance(p, nyc)
		if res.Reliable {
			t.Fatalf("point %+v should not be reliable", p)
		}
		if !math.IsNaN(res.DistanceMeters) {
			t.Fatalf("point %+v: distance = %v, want NaN", p, res.DistanceMeters)
		}
		if !math.IsInf(res.ErrorMarginMeters, 1) {
			t.Fatalf("point %+v: margin = %v, want +Inf", p, res.ErrorMarginMeters)
		}
	}
}

func TestWithinRadiusClose(t *testing.T) {
	// Roughly 11 m north of the anchor.
	student := Reading{Point: Point{Lat: 40.7129, Lon: -74.0060}}
	anchor := Reading{Point: nyc}

	res := WithinRadius(student, anchor, 100)
	if !res.Within {
		t.Fatalf("student %.2f m away should be within 100 m, got %+v", res.DistanceMeters, res)
	}
	if res.EffectiveRadiusMeters != 100 {
		t.Fatalf("effective radius = %.2f, want 100 with zero accuracy", res.EffectiveRadiusMeters)
	}
}

func TestWithinRadiusFar(t *testing.T) {
	// Roughly 500 m north of the anchor.
	student := Reading{Point: Point{Lat: 40.7173, Lon: -74.0060}}
	anchor := Reading{Point: nyc}

	res := WithinRadius(student, anchor, 100)
	if res.Within {
		t.Fatalf("student %.2f m away should not be within 100 m", res.DistanceMeters)
	}
	if !res.Reliable {
		t.Fatalf("valid far reading should still be reliable")
	}
}

func TestWithinRadiusAccuracyWidens(t *testing.T) {
	student := Point{Lat: 40.7129, Lon: -74.0060}
	anchor := Reading{Point: nyc}

	poor := WithinRadius(Reading{Point: student, Accuracy: 50}, anchor, 100)
	good := WithinRadius(Reading{Point: student, Accuracy: 5}, anchor, 100)

	if poor.ErrorMarginMeters != 50 || good.ErrorMarginMeters != 5 {
		t.Fatalf("margins = %.2f/%.2f, want 50/5", poor.ErrorMarginMeters, good.ErrorMarginMeters)
	}
	if poor.EffectiveRadiusMeters <= good.EffectiveRadiusMeters {
		t.Fatalf("poor accuracy must widen the radius: %.2f vs %.2f",
			poor.EffectiveRadiusMeters, good.EffectiveRadiusMeters)
	}
	if good.Within && !poor.Within {
		t.Fatalf("widening the radius must never flip within true->false")
	}
}

func TestWithinRadiusMarginIsWorstAccuracy(t *testing.T) {
	student := Reading{Point: Point{Lat: 40.7129, Lon: -74.0060}, Accuracy: 5}
	anchor := Reading{Point: nyc, Accuracy: 30}

	res := WithinRadius(student, anchor, 100)
	if res.ErrorMarginMeters != 30 {
		t.Fatalf("margin = %.2f, want the worse of the two accuracies (30)", res.ErrorMarginMeters)
	}
	if res.EffectiveRadiusMeters != 130 {
		t.Fatalf("effective radius = %.2f, want 130", res.EffectiveRadiusMeters)
	}
}

func TestWithinRadiusNegativeAccuracyClamped(t *testing.T) {
	student := Reading{Point: Point{Lat: 40.7129, Lon: -74.0060}, Accuracy: -10}
	res := WithinRadius(student, Reading{Point: nyc}, 100)
	if res.ErrorMarginMeters != 0 {
		t.Fatalf("negative accuracy should clamp to 0, got margin %.2f", res.ErrorMarginMeters)
	}
	if !res.Within {
		t.Fatalf("clamped accuracy should not block a close reading")
	}
}

func TestWithinRadiusUnreliableNeverPasses(t *testing.T) {
	anchor := Reading{Point: nyc}
	cases := []Reading{
		{Point: NewPoint(nil, nil)},
		{Point: Point{Lat: math.NaN(), Lon: math.NaN()}},
		{Point: Point{Lat: 200, Lon: 0}},
		{Point: nyc, Accuracy: math.Inf(1)},
	}
	for _, r := range cases {
		res := WithinRadius(r, anchor, 1e9)
		if res.Reliable {
			t.Fatalf("reading %+v should be unreliable", r)
		}
		if res.Within {
			t.Fatalf("unreliable reading %+v must never pass", r)
		}
	}
}

func TestWithinRadiusScenarios(t *testing.T) {
	anchor := Reading{Point: nyc}
	cases := []struct {
		name    string
		student Point
		radius  float64
		want    bool
	}{
		{"classroom", Point{Lat: 40.7128, Lon: -74.0060}, 50, true},
		{"hallway", Point{Lat: 40.7130, Lon: -74.0060}, 50, true},
		{"parking lot", Point{Lat: 40.7140, Lon: -74.0060}, 50, false},
		{"at home", Point{Lat: 40.7200, Lon: -74.0100}, 100, false},
	}
	for _, tc := range cases {
		res := WithinRadius(Reading{Point: tc.student}, anchor, tc.radius)
		if res.Within != tc.want {
			t.Errorf("%s: distance %.2f m, within %v, want %v", tc.name, res.DistanceMeters, res.Within, tc.want)
		}
	}
}
