package datcom

import (
	"errors"
	"fmt"
	"math"
)

// MaxAlphas is the DATCOM card limit on angles of attack per case.
const MaxAlphas = 20

var loopDescriptions = map[float64]string{
	1.0: "For each altitude, loop through all alphas and Machs.",
	2.0: "For each Mach, loop through all altitudes and alphas.",
	3.0: "For each altitude, loop through all Machs and alphas.",
}

// FltconInput describes the flight envelope to analyze. AlphaRange is
// [start, end, step] in degrees.
type FltconInput struct {
	MachNumbers []float64 `json:"mach_numbers" jsonschema:"description=Mach numbers to analyze"`
	Altitudes   []float64 `json:"altitudes" jsonschema:"description=Altitudes in feet"`
	AlphaRange  []float64 `json:"alpha_range" jsonschema:"description=Angle of attack range as [start end step] in degrees"`
	Weight      float64   `json:"weight" jsonschema:"description=Aircraft weight in pounds"`
	LoopMode    float64   `json:"loop_mode,omitempty" jsonschema:"description=DATCOM LOOP mode,default=2"`
}

// Fltcon is the $FLTCON record: the flight condition matrix DATCOM sweeps.
type Fltcon struct {
	NMACH  float64   `json:"NMACH"`
	MACH   []float64 `json:"MACH"`
	NALT   float64   `json:"NALT"`
	ALT    []float64 `json:"ALT"`
	NALPHA float64   `json:"NALPHA"`
	ALSCHD []float64 `json:"ALSCHD"`
	WT     float64   `json:"WT"`
	LOOP   float64   `json:"LOOP"`

	AnalysisPoints  int    `json:"_analysis_points"`
	LoopDescription string `json:"_loop_description"`
}

// Points returns NMACH·NALT·NALPHA, the number of analysis points the
// matrix expands to.
func (f *Fltcon) Points() int { return f.AnalysisPoints }

func (f *Fltcon) fields() []field {
	return []field{
		scalar("NMACH", f.NMACH),
		array("MACH", f.MACH),
		scalar("NALT", f.NALT),
		array("ALT", f.ALT),
		scalar("NALPHA", f.NALPHA),
		array("ALSCHD", f.ALSCHD),
		scalar("WT", f.WT),
		scalar("LOOP", f.LOOP),
	}
}

// FltconMatrix expands a flight envelope into the $FLTCON record. The
// alpha schedule holds start + i·step for every i with start + i·step ≤
// end; the count is computed as ⌊(end−start)/step⌋+1 with a small epsilon
// so that fractional steps landing exactly on the end value are kept.
func FltconMatrix(in FltconInput) (*Fltcon, error) {
	if len(in.AlphaRange) != 3 {
		return nil, errors.New("alpha_range must contain exactly 3 values: [start, end, step]")
	}
	start, end, step := in.AlphaRange[0], in.AlphaRange[1], in.AlphaRange[2]
	if step <= 0 {
		return nil, fmt.Errorf("alpha_range step must be greater than 0, but got %s.", ftoa(step))
	}

	n := 1 + int(math.Floor((end-start)/step+1e-9))
	if n < 0 {
		n = 0
	}
	if n > MaxAlphas {
		return nil, errors.New("DATCOM supports a maximum of 20 angles of attack (NALPHA <= 20).")
	}
	alphas := make([]float64, n)
	for i := range alphas {
		alphas[i] = round1(start + float64(i)*step)
	}

	machs := make([]float64, len(in.MachNumbers))
	for i, m := range in.MachNumbers {
		machs[i] = round2(m)
	}
	alts := make([]float64, len(in.Altitudes))
	for i, a := range in.Altitudes {
		alts[i] = round1(a)
	}

	loopMode := in.LoopMode
	if loopMode == 0 {
		loopMode = 2.0
	}
	desc, ok := loopDescriptions[loopMode]
	if !ok {
		desc = "Unknown loop mode"
	}

	return &Fltcon{
		NMACH:           float64(len(machs)),
		MACH:            machs,
		NALT:            float64(len(alts)),
		ALT:             alts,
		NALPHA:          float64(len(alphas)),
		ALSCHD:          alphas,
		WT:              round1(in.Weight),
		LOOP:            loopMode,
		AnalysisPoints:  len(machs) * len(alts) * len(alphas),
		LoopDescription: desc,
	}, nil
}
