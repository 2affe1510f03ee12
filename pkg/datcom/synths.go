package datcom

import (
	"errors"
	"fmt"
)

// SynthsInput places the major components along the fuselage as fractions
// of its length. Zero fractions fall back to conventional positions.
type SynthsInput struct {
	FuselageLength       float64 `json:"fuselage_length" jsonschema:"description=Total fuselage length in feet"`
	WingPositionPercent  float64 `json:"wing_position_percent,omitempty" jsonschema:"description=Wing apex position as a fraction of fuselage length,default=0.4"`
	HtailPositionPercent float64 `json:"htail_position_percent,omitempty" jsonschema:"description=Horizontal tail position as a fraction of fuselage length,default=0.9"`
	VtailPositionPercent float64 `json:"vtail_position_percent,omitempty" jsonschema:"description=Vertical tail position as a fraction of fuselage length,default=0.65"`
	CGPositionPercent    float64 `json:"cg_position_percent,omitempty" jsonschema:"description=Center of gravity position as a fraction of fuselage length,default=0.35"`
	WingZ                float64 `json:"wing_z,omitempty" jsonschema:"description=Wing vertical position in feet"`
	HtailZ               float64 `json:"htail_z,omitempty" jsonschema:"description=Horizontal tail vertical position in feet"`
	VtailZ               float64 `json:"vtail_z,omitempty" jsonschema:"description=Vertical tail vertical position in feet"`
}

// Synths is the $SYNTHS record: component X,Z stations in feet.
type Synths struct {
	XCG  float64 `json:"XCG"`
	ZCG  float64 `json:"ZCG"`
	XW   float64 `json:"XW"`
	ZW   float64 `json:"ZW"`
	ALIW float64 `json:"ALIW"`
	XH   float64 `json:"XH"`
	ZH   float64 `json:"ZH"`
	ALIH float64 `json:"ALIH"`
	XV   float64 `json:"XV"`
	ZV   float64 `json:"ZV"`

	FuselageLength   float64            `json:"_fuselage_length"`
	PositionsPercent map[string]string  `json:"_positions_percent"`
	MomentArms       map[string]float64 `json:"_moment_arms"`
}

func (s *Synths) fields() []field {
	return []field{
		scalar("XCG", s.XCG),
		scalar("ZCG", s.ZCG),
		scalar("XW", s.XW),
		scalar("ZW", s.ZW),
		scalar("ALIW", s.ALIW),
		scalar("XH", s.XH),
		scalar("ZH", s.ZH),
		scalar("ALIH", s.ALIH),
		scalar("XV", s.XV),
		scalar("ZV", s.ZV),
	}
}

func orFraction(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}

// SynthesisPositions computes the $SYNTHS record from a fuselage length
// and component position fractions. ALIW defaults to one degree of wing
// incidence, the tail incidence to zero.
func SynthesisPositions(in SynthsInput) (*Synths, error) {
	if in.FuselageLength <= 0 {
		return nil, errors.New("Fuselage length must be greater than 0.")
	}

	cgPct := orFraction(in.CGPositionPercent, 0.35)
	wingPct := orFraction(in.WingPositionPercent, 0.40)
	htailPct := orFraction(in.HtailPositionPercent, 0.90)
	vtailPct := orFraction(in.VtailPositionPercent, 0.65)

	xcg := in.FuselageLength * cgPct
	xw := in.FuselageLength * wingPct
	xh := in.FuselageLength * htailPct
	xv := in.FuselageLength * vtailPct

	return &Synths{
		XCG:            round2(xcg),
		ZCG:            0.0,
		XW:             round2(xw),
		ZW:             round2(in.WingZ),
		ALIW:           1.0,
		XH:             round2(xh),
		ZH:             round2(in.HtailZ),
		ALIH:           0.0,
		XV:             round2(xv),
		ZV:             round2(in.VtailZ),
		FuselageLength: in.FuselageLength,
		PositionsPercent: map[string]string{
			"CG":    fmt.Sprintf("%.1f%%", cgPct*100),
			"Wing":  fmt.Sprintf("%.1f%%", wingPct*100),
			"HTail": fmt.Sprintf("%.1f%%", htailPct*100),
			"VTail": fmt.Sprintf("%.1f%%", vtailPct*100),
		},
		MomentArms: map[string]float64{
			"wing_to_cg":  round2(xw - xcg),
			"htail_to_cg": round2(xh - xcg),
			"vtail_to_cg": round2(xv - xcg),
		},
	}, nil
}
