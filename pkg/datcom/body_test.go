package datcom

import (
	"math"
	"reflect"
	"testing"
)

func TestDefineBody(t *testing.T) {
	body, err := DefineBody(BodyInput{FuselageLength: 63, MaxDiameter: 3})
	if err != nil {
		t.Fatalf("DefineBody() error = %v", err)
	}

	if body.NX != 10.0 {
		t.Errorf("NX = %v, want 10.0", body.NX)
	}
	wantX := []float64{0, 7, 14, 21, 28, 35, 42, 49, 56, 63}
	if !reflect.DeepEqual(body.X, wantX) {
		t.Errorf("X = %v, want %v", body.X, wantX)
	}

	// Parabolic nose (default 20% of length = 12.6 ft), constant
	// midsection at R=1.5, linear boat-tail closing at the stern.
	if body.R[0] != 0 {
		t.Errorf("R[0] = %v, want 0 (sharp nose tip)", body.R[0])
	}
	if body.R[1] != 1.118 {
		t.Errorf("R[1] = %v, want 1.118", body.R[1])
	}
	for i := 2; i <= 7; i++ {
		if body.R[i] != 1.5 {
			t.Errorf("R[%d] = %v, want 1.5 (midsection)", i, body.R[i])
		}
	}
	if body.R[8] != 0.833 {
		t.Errorf("R[8] = %v, want 0.833", body.R[8])
	}
	if body.R[9] != 0 {
		t.Errorf("R[9] = %v, want 0 (closed stern)", body.R[9])
	}

	// Cross sections are πR² of the unrounded radius.
	if body.S[1] != 3.93 {
		t.Errorf("S[1] = %v, want 3.93", body.S[1])
	}
	if body.S[4] != 7.07 {
		t.Errorf("S[4] = %v, want 7.07", body.S[4])
	}
	if body.S[8] != 2.18 {
		t.Errorf("S[8] = %v, want 2.18", body.S[8])
	}

	for i := range body.X {
		if body.ZU[i] != body.R[i] {
			t.Errorf("ZU[%d] = %v, want %v", i, body.ZU[i], body.R[i])
		}
		if body.ZL[i] != -body.R[i] {
			t.Errorf("ZL[%d] = %v, want %v", i, body.ZL[i], -body.R[i])
		}
	}
	if math.Signbit(body.ZL[0]) {
		t.Errorf("ZL[0] = %v, want positive zero", body.ZL[0])
	}
}

func TestDefineBodyExplicitSegments(t *testing.T) {
	body, err := DefineBody(BodyInput{
		FuselageLength: 20,
		MaxDiameter:    4,
		NoseLength:     5,
		TailLength:     5,
		NStations:      5,
	})
	if err != nil {
		t.Fatalf("DefineBody() error = %v", err)
	}
	wantX := []float64{0, 5, 10, 15, 20}
	if !reflect.DeepEqual(body.X, wantX) {
		t.Errorf("X = %v, want %v", body.X, wantX)
	}
	wantR := []float64{0, 2, 2, 2, 0}
	if !reflect.DeepEqual(body.R, wantR) {
		t.Errorf("R = %v, want %v", body.R, wantR)
	}
	if body.Segments["nose"] == "" || body.Segments["midsection"] == "" || body.Segments["boattail"] == "" {
		t.Errorf("_segments incomplete: %v", body.Segments)
	}
}

func TestDefineBodyStationLimit(t *testing.T) {
	_, err := DefineBody(BodyInput{FuselageLength: 63, MaxDiameter: 3, NStations: 21})
	want := "DATCOM supports a maximum of 20 fuselage stations."
	if err == nil || err.Error() != want {
		t.Errorf("DefineBody(n=21) error = %v, want %q", err, want)
	}

	body, err := DefineBody(BodyInput{FuselageLength: 63, MaxDiameter: 3, NStations: 20})
	if err != nil {
		t.Fatalf("DefineBody(n=20) error = %v", err)
	}
	if body.NX != 20.0 || len(body.X) != 20 {
		t.Errorf("NX = %v with %d stations, want 20", body.NX, len(body.X))
	}
}

func TestDefineBodyValidation(t *testing.T) {
	tests := []struct {
		name    string
		in      BodyInput
		wantErr string
	}{
		{
			name:    "zero length",
			in:      BodyInput{FuselageLength: 0, MaxDiameter: 3},
			wantErr: "Fuselage length must be greater than 0.",
		},
		{
			name:    "zero diameter",
			in:      BodyInput{FuselageLength: 63, MaxDiameter: 0},
			wantErr: "Maximum diameter must be greater than 0.",
		},
		{
			name:    "segments exceed length",
			in:      BodyInput{FuselageLength: 20, MaxDiameter: 3, NoseLength: 12, TailLength: 12},
			wantErr: "Nose and tail lengths must be non-negative and sum to at most the fuselage length.",
		},
		{
			name:    "too few stations",
			in:      BodyInput{FuselageLength: 63, MaxDiameter: 3, NStations: 1},
			wantErr: "At least 2 fuselage stations are required.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DefineBody(tt.in)
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("DefineBody() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
