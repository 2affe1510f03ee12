package datcom

import (
	"math"
	"strings"
	"testing"
)

func TestConvertWing(t *testing.T) {
	wing, err := ConvertWing(WingInput{S: 100, A: 8, Lambda: 0.5, SweepAngle: 10})
	if err != nil {
		t.Fatalf("ConvertWing() error = %v", err)
	}

	if wing.CHRDR != 4.71 {
		t.Errorf("CHRDR = %v, want 4.71", wing.CHRDR)
	}
	if wing.CHRDTP != 2.36 {
		t.Errorf("CHRDTP = %v, want 2.36", wing.CHRDTP)
	}
	if wing.SSPN != 14.14 {
		t.Errorf("SSPN = %v, want 14.14", wing.SSPN)
	}
	if wing.SSPNE != wing.SSPN {
		t.Errorf("SSPNE = %v, want SSPN %v", wing.SSPNE, wing.SSPN)
	}
	if wing.SAVSI != 10.0 {
		t.Errorf("SAVSI = %v, want 10.0", wing.SAVSI)
	}
	if wing.TYPE != 1.0 {
		t.Errorf("TYPE = %v, want 1.0", wing.TYPE)
	}
	if wing.SREF != 100.0 {
		t.Errorf("SREF = %v, want 100.0", wing.SREF)
	}
	if wing.Wingspan != 28.28 {
		t.Errorf("_wingspan = %v, want 28.28", wing.Wingspan)
	}
	if wing.MAC != 3.67 {
		t.Errorf("_MAC = %v, want 3.67", wing.MAC)
	}
	if wing.TaperRatio != 0.5 {
		t.Errorf("_taper_ratio = %v, want 0.5", wing.TaperRatio)
	}
	if wing.Airfoil != "NACA-W-4-2412" {
		t.Errorf("airfoil = %q, want NACA-W-4-2412", wing.Airfoil)
	}
}

func TestConvertWingFormulas(t *testing.T) {
	wing, err := ConvertWing(WingInput{S: 100, A: 8, Lambda: 0.5, SweepAngle: 10})
	if err != nil {
		t.Fatalf("ConvertWing() error = %v", err)
	}

	want := map[string]string{
		"wingspan":   "b = √(8·100) = 28.28 ft",
		"root_chord": "Croot = 2·100 / [28.28·(1+0.5)] = 4.71 ft",
		"tip_chord":  "Ctip = 0.5·4.71 = 2.36 ft",
		"semi_span":  "SSPN = 28.28/2 = 14.14 ft",
		"MAC":        "MAC = (2/3)·4.71·(1+0.5+0.250)/(1+0.5) = 3.67 ft",
	}
	for key, expected := range want {
		if got := wing.Formulas[key]; got != expected {
			t.Errorf("formula %q = %q, want %q", key, got, expected)
		}
	}
}

func TestConvertWingFighterGeometry(t *testing.T) {
	// F-4 style planform: low aspect ratio, strong sweep, anhedral.
	wing, err := ConvertWing(WingInput{S: 530, A: 2.8, Lambda: 0.3, SweepAngle: 45, Dihedral: -3.0})
	if err != nil {
		t.Fatalf("ConvertWing() error = %v", err)
	}

	if wing.CHRDR != 21.17 {
		t.Errorf("CHRDR = %v, want 21.17", wing.CHRDR)
	}
	if wing.CHRDTP != 6.35 {
		t.Errorf("CHRDTP = %v, want 6.35", wing.CHRDTP)
	}
	if wing.SSPN != 19.26 {
		t.Errorf("SSPN = %v, want 19.26", wing.SSPN)
	}
	if wing.SAVSI != 45.0 {
		t.Errorf("SAVSI = %v, want 45.0", wing.SAVSI)
	}
	if wing.DHDADI != -3.0 {
		t.Errorf("DHDADI = %v, want -3.0", wing.DHDADI)
	}
	if wing.SREF != 530.0 {
		t.Errorf("SREF = %v, want 530.0", wing.SREF)
	}
}

func TestConvertWingDefaults(t *testing.T) {
	wing, err := ConvertWing(WingInput{S: 250, A: 6, Lambda: 0.4, SweepAngle: 20})
	if err != nil {
		t.Fatalf("ConvertWing() error = %v", err)
	}
	if wing.Airfoil != "NACA-W-4-2412" {
		t.Errorf("default airfoil = %q, want NACA-W-4-2412", wing.Airfoil)
	}
	if wing.CHSTAT != 0.0 || wing.DHDADI != 0.0 || wing.TWISTA != 0.0 {
		t.Errorf("defaults: CHSTAT=%v DHDADI=%v TWISTA=%v, want all 0", wing.CHSTAT, wing.DHDADI, wing.TWISTA)
	}

	wing, err = ConvertWing(WingInput{S: 250, A: 6, Lambda: 0.4, SweepAngle: 20, Airfoil: "4415", SweepLocation: 0.25})
	if err != nil {
		t.Fatalf("ConvertWing() error = %v", err)
	}
	if wing.Airfoil != "NACA-W-4-4415" {
		t.Errorf("airfoil = %q, want NACA-W-4-4415", wing.Airfoil)
	}
	if wing.CHSTAT != 0.25 {
		t.Errorf("CHSTAT = %v, want 0.25", wing.CHSTAT)
	}
}

func TestConvertWingValidation(t *testing.T) {
	tests := []struct {
		name    string
		in      WingInput
		wantErr string
	}{
		{
			name:    "zero area",
			in:      WingInput{S: 0, A: 8, Lambda: 0.5, SweepAngle: 10},
			wantErr: "Wing area (S) and aspect ratio (A) must be greater than 0.",
		},
		{
			name:    "negative aspect ratio",
			in:      WingInput{S: 100, A: -1, Lambda: 0.5, SweepAngle: 10},
			wantErr: "Wing area (S) and aspect ratio (A) must be greater than 0.",
		},
		{
			name:    "taper above one",
			in:      WingInput{S: 100, A: 8, Lambda: 1.5, SweepAngle: 10},
			wantErr: "Taper ratio (lambda_) must be between 0 and 1, but got 1.5.",
		},
		{
			name:    "negative taper",
			in:      WingInput{S: 100, A: 8, Lambda: -0.1, SweepAngle: 10},
			wantErr: "Taper ratio (lambda_) must be between 0 and 1, but got -0.1.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConvertWing(tt.in)
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("ConvertWing() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

// The planform relations must reconstruct the inputs: trapezoid area
// Croot·(1+λ)·SSPN equals S, the chord ratio equals λ and b²/S equals A.
func TestPlanformRoundTrip(t *testing.T) {
	areas := []float64{50, 100, 250, 530, 1000}
	ratios := []float64{2.8, 4, 6, 8, 12}
	tapers := []float64{0, 0.3, 0.5, 0.75, 1}

	for _, s := range areas {
		for _, a := range ratios {
			for _, taper := range tapers {
				b := Wingspan(s, a)
				root := RootChord(s, b, taper)
				semi := b / 2

				if got := root * (1 + taper) * semi; math.Abs(got-s) > 1e-6 {
					t.Errorf("S=%v A=%v λ=%v: Croot·(1+λ)·SSPN = %v, want %v", s, a, taper, got, s)
				}
				if got := AspectRatio(b, s); math.Abs(got-a) > 1e-9 {
					t.Errorf("S=%v A=%v: AspectRatio = %v, want %v", s, a, got, a)
				}
				if taper > 0 {
					tip := TipChord(root, taper)
					if got := TaperRatio(tip, root); math.Abs(got-taper) > 1e-9 {
						t.Errorf("λ=%v: TaperRatio = %v", taper, got)
					}
				}
			}
		}
	}
}

func TestConvertTailHorizontal(t *testing.T) {
	tail, err := ConvertTail(TailInput{Component: "horizontal_tail", S: 100, A: 3.0, Lambda: 0.4, SweepAngle: 35})
	if err != nil {
		t.Fatalf("ConvertTail() error = %v", err)
	}

	if tail.CHRDR != 8.25 {
		t.Errorf("CHRDR = %v, want 8.25", tail.CHRDR)
	}
	if tail.CHRDTP != 3.3 {
		t.Errorf("CHRDTP = %v, want 3.3", tail.CHRDTP)
	}
	if tail.SSPN != 8.66 {
		t.Errorf("SSPN = %v, want 8.66", tail.SSPN)
	}
	if tail.CHSTAT != 0.0 || tail.DHDADI != 0.0 || tail.TWISTA != 0.0 {
		t.Errorf("tail fixed fields: CHSTAT=%v DHDADI=%v TWISTA=%v, want all 0", tail.CHSTAT, tail.DHDADI, tail.TWISTA)
	}
	if tail.Airfoil != "NACA-H-4-0012" {
		t.Errorf("airfoil = %q, want NACA-H-4-0012", tail.Airfoil)
	}
	if tail.Namelist != "$HTPLNF" {
		t.Errorf("_namelist = %q, want $HTPLNF", tail.Namelist)
	}
	if tail.Component != "horizontal_tail" {
		t.Errorf("_component = %q, want horizontal_tail", tail.Component)
	}
	if tail.SpanOrHeight != 17.32 {
		t.Errorf("_wingspan_or_height = %v, want 17.32", tail.SpanOrHeight)
	}
	if tail.Area != 100.0 {
		t.Errorf("_area = %v, want 100.0", tail.Area)
	}
	if got := tail.Formulas["dimension"]; !strings.HasSuffix(got, "(span)") {
		t.Errorf("dimension formula %q should end with (span)", got)
	}
}

func TestConvertTailVertical(t *testing.T) {
	tail, err := ConvertTail(TailInput{Component: "vertical_tail", S: 60, A: 1.5, Lambda: 0.4, SweepAngle: 40, IsVertical: true})
	if err != nil {
		t.Fatalf("ConvertTail() error = %v", err)
	}
	if tail.Namelist != "$VTPLNF" {
		t.Errorf("_namelist = %q, want $VTPLNF", tail.Namelist)
	}
	if tail.Airfoil != "NACA-V-4-0012" {
		t.Errorf("airfoil = %q, want NACA-V-4-0012", tail.Airfoil)
	}
	if got := tail.Formulas["dimension"]; !strings.HasSuffix(got, "(height)") {
		t.Errorf("dimension formula %q should end with (height)", got)
	}
}

func TestConvertTailValidation(t *testing.T) {
	_, err := ConvertTail(TailInput{Component: "horizontal_tail", S: -5, A: 3, Lambda: 0.4, SweepAngle: 35})
	want := "Area (S) and aspect ratio (A) must be greater than 0."
	if err == nil || err.Error() != want {
		t.Errorf("ConvertTail() error = %v, want %q", err, want)
	}

	_, err = ConvertTail(TailInput{Component: "horizontal_tail", S: 100, A: 3, Lambda: 2, SweepAngle: 35})
	want = "Taper ratio (lambda_) must be between 0 and 1, but got 2."
	if err == nil || err.Error() != want {
		t.Errorf("ConvertTail() error = %v, want %q", err, want)
	}
}
