package datcom

import (
	"errors"
	"fmt"
	"math"
)

// Core planform relations. Exported so callers can verify a converted
// planform against the originating parameters without re-deriving them.

// Wingspan computes b = √(A·S).
func Wingspan(s, a float64) float64 { return math.Sqrt(a * s) }

// RootChord computes Croot = 2S / [b(1+λ)].
func RootChord(s, b, taper float64) float64 { return (2 * s) / (b * (1 + taper)) }

// TipChord computes Ctip = λ·Croot.
func TipChord(root, taper float64) float64 { return taper * root }

// MeanAerodynamicChord computes MAC = (2/3)·Croot·(1+λ+λ²)/(1+λ).
func MeanAerodynamicChord(root, taper float64) float64 {
	return (2.0 / 3.0) * root * (1 + taper + taper*taper) / (1 + taper)
}

// AspectRatio computes A = b²/S.
func AspectRatio(b, s float64) float64 { return (b * b) / s }

// TaperRatio computes λ = Ctip/Croot.
func TaperRatio(tip, root float64) float64 { return tip / root }

// planformCore carries the DATCOM keys shared by $WGPLNF, $HTPLNF and
// $VTPLNF. Field order fixes the JSON key order of the observation.
type planformCore struct {
	CHRDR   float64 `json:"CHRDR"`
	CHRDTP  float64 `json:"CHRDTP"`
	SSPN    float64 `json:"SSPN"`
	SSPNE   float64 `json:"SSPNE"`
	SAVSI   float64 `json:"SAVSI"`
	CHSTAT  float64 `json:"CHSTAT"`
	TYPE    float64 `json:"TYPE"`
	DHDADI  float64 `json:"DHDADI"`
	TWISTA  float64 `json:"TWISTA"`
	Airfoil string  `json:"airfoil"`
}

// Params returns the DATCOM keys as a generic map for Validate.
func (p *planformCore) Params() map[string]interface{} {
	return map[string]interface{}{
		"CHRDR":   p.CHRDR,
		"CHRDTP":  p.CHRDTP,
		"SSPN":    p.SSPN,
		"SSPNE":   p.SSPNE,
		"SAVSI":   p.SAVSI,
		"CHSTAT":  p.CHSTAT,
		"TYPE":    p.TYPE,
		"DHDADI":  p.DHDADI,
		"TWISTA":  p.TWISTA,
		"airfoil": p.Airfoil,
	}
}

// fields lists the namelist assignments of a planform block.
func (p *planformCore) fields() []field {
	return []field{
		scalar("CHRDTP", p.CHRDTP),
		scalar("SSPNE", p.SSPNE),
		scalar("SSPN", p.SSPN),
		scalar("CHRDR", p.CHRDR),
		scalar("SAVSI", p.SAVSI),
		scalar("CHSTAT", p.CHSTAT),
		scalar("TWISTA", p.TWISTA),
		scalar("DHDADI", p.DHDADI),
		scalar("TYPE", p.TYPE),
	}
}

// WingInput is a standard wing description: reference area, aspect ratio,
// taper ratio and quarter-chord sweep, plus optional refinements.
type WingInput struct {
	S             float64 `json:"S" jsonschema:"description=Wing reference area in square feet"`
	A             float64 `json:"A" jsonschema:"description=Aspect ratio"`
	Lambda        float64 `json:"lambda_" jsonschema:"description=Taper ratio between 0.0 and 1.0"`
	SweepAngle    float64 `json:"sweep_angle" jsonschema:"description=Sweep angle in degrees"`
	Airfoil       string  `json:"airfoil,omitempty" jsonschema:"description=NACA airfoil designation,default=2412"`
	Dihedral      float64 `json:"dihedral,omitempty" jsonschema:"description=Dihedral angle in degrees"`
	Twist         float64 `json:"twist,omitempty" jsonschema:"description=Twist angle in degrees; negative for washout"`
	SweepLocation float64 `json:"sweep_location,omitempty" jsonschema:"description=Chordwise station of the sweep reference"`
}

// WingPlanform is the $WGPLNF record produced by ConvertWing.
type WingPlanform struct {
	planformCore
	SREF        float64           `json:"SREF"`
	Wingspan    float64           `json:"_wingspan"`
	MAC         float64           `json:"_MAC"`
	AspectRatio float64           `json:"_aspect_ratio"`
	TaperRatio  float64           `json:"_taper_ratio"`
	Formulas    map[string]string `json:"_formulas"`
}

// ConvertWing converts a standard wing description into its $WGPLNF record.
func ConvertWing(in WingInput) (*WingPlanform, error) {
	if in.S <= 0 || in.A <= 0 {
		return nil, errors.New("Wing area (S) and aspect ratio (A) must be greater than 0.")
	}
	if in.Lambda < 0 || in.Lambda > 1 {
		return nil, fmt.Errorf("Taper ratio (lambda_) must be between 0 and 1, but got %s.", ftoa(in.Lambda))
	}
	airfoil := in.Airfoil
	if airfoil == "" {
		airfoil = "2412"
	}

	b := Wingspan(in.S, in.A)
	root := RootChord(in.S, b, in.Lambda)
	tip := TipChord(root, in.Lambda)
	semi := b / 2
	mac := MeanAerodynamicChord(root, in.Lambda)

	return &WingPlanform{
		planformCore: planformCore{
			CHRDR:   round2(root),
			CHRDTP:  round2(tip),
			SSPN:    round2(semi),
			SSPNE:   round2(semi),
			SAVSI:   round1(in.SweepAngle),
			CHSTAT:  in.SweepLocation,
			TYPE:    1.0,
			DHDADI:  round1(in.Dihedral),
			TWISTA:  round1(in.Twist),
			Airfoil: "NACA-W-4-" + airfoil,
		},
		SREF:        round2(in.S),
		Wingspan:    round2(b),
		MAC:         round2(mac),
		AspectRatio: round2(in.A),
		TaperRatio:  round3(in.Lambda),
		Formulas: map[string]string{
			"wingspan":   fmt.Sprintf("b = √(%s·%s) = %.2f ft", ftoa(in.A), ftoa(in.S), b),
			"root_chord": fmt.Sprintf("Croot = 2·%s / [%.2f·(1+%s)] = %.2f ft", ftoa(in.S), b, ftoa(in.Lambda), root),
			"tip_chord":  fmt.Sprintf("Ctip = %s·%.2f = %.2f ft", ftoa(in.Lambda), root, tip),
			"semi_span":  fmt.Sprintf("SSPN = %.2f/2 = %.2f ft", b, semi),
			"MAC":        fmt.Sprintf("MAC = (2/3)·%.2f·(1+%s+%.3f)/(1+%s) = %.2f ft", root, ftoa(in.Lambda), in.Lambda*in.Lambda, ftoa(in.Lambda), mac),
		},
	}, nil
}

// TailInput describes a horizontal or vertical tail surface.
type TailInput struct {
	Component  string  `json:"component" jsonschema:"description=Component name such as horizontal_tail or vertical_tail"`
	S          float64 `json:"S" jsonschema:"description=Tail surface area in square feet"`
	A          float64 `json:"A" jsonschema:"description=Aspect ratio"`
	Lambda     float64 `json:"lambda_" jsonschema:"description=Taper ratio between 0.0 and 1.0"`
	SweepAngle float64 `json:"sweep_angle" jsonschema:"description=Sweep angle in degrees"`
	Airfoil    string  `json:"airfoil,omitempty" jsonschema:"description=NACA airfoil designation,default=0012"`
	IsVertical bool    `json:"is_vertical,omitempty" jsonschema:"description=True for a vertical tail"`
}

// TailPlanform is the $HTPLNF or $VTPLNF record produced by ConvertTail.
// For a vertical tail SSPN holds the panel height rather than a semi-span.
type TailPlanform struct {
	planformCore
	Component    string            `json:"_component"`
	Namelist     string            `json:"_namelist"`
	SpanOrHeight float64           `json:"_wingspan_or_height"`
	Area         float64           `json:"_area"`
	Formulas     map[string]string `json:"_formulas"`
}

// ConvertTail converts a tail surface description into its planform record.
func ConvertTail(in TailInput) (*TailPlanform, error) {
	if in.S <= 0 || in.A <= 0 {
		return nil, errors.New("Area (S) and aspect ratio (A) must be greater than 0.")
	}
	if in.Lambda < 0 || in.Lambda > 1 {
		return nil, fmt.Errorf("Taper ratio (lambda_) must be between 0 and 1, but got %s.", ftoa(in.Lambda))
	}
	airfoil := in.Airfoil
	if airfoil == "" {
		airfoil = "0012"
	}

	b := Wingspan(in.S, in.A)
	root := RootChord(in.S, b, in.Lambda)
	tip := TipChord(root, in.Lambda)
	semi := b / 2

	namelist, prefix, dimension := "$HTPLNF", "H", "(span)"
	if in.IsVertical {
		namelist, prefix, dimension = "$VTPLNF", "V", "(height)"
	}

	return &TailPlanform{
		planformCore: planformCore{
			CHRDR:   round2(root),
			CHRDTP:  round2(tip),
			SSPN:    round2(semi),
			SSPNE:   round2(semi),
			SAVSI:   round1(in.SweepAngle),
			CHSTAT:  0.0,
			TYPE:    1.0,
			DHDADI:  0.0,
			TWISTA:  0.0,
			Airfoil: fmt.Sprintf("NACA-%s-4-%s", prefix, airfoil),
		},
		Component:    in.Component,
		Namelist:     namelist,
		SpanOrHeight: round2(b),
		Area:         round2(in.S),
		Formulas: map[string]string{
			"dimension":  fmt.Sprintf("b = √(%s·%s) = %.2f ft %s", ftoa(in.A), ftoa(in.S), b, dimension),
			"root_chord": fmt.Sprintf("Croot = 2·%s / [%.2f·(1+%s)] = %.2f ft", ftoa(in.S), b, ftoa(in.Lambda), root),
			"tip_chord":  fmt.Sprintf("Ctip = %s·%.2f = %.2f ft", ftoa(in.Lambda), root, tip),
			"SSPN":       fmt.Sprintf("SSPN = %.2f/2 = %.2f ft", b, semi),
		},
	}, nil
}
