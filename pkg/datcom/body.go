package datcom

import (
	"errors"
	"fmt"
	"math"
)

// MaxStations is the DATCOM card limit on fuselage stations.
const MaxStations = 20

const defaultStations = 10

// BodyInput describes an axisymmetric fuselage: a parabolic nose, a
// constant-radius midsection and a linear boat-tail closing to a point.
type BodyInput struct {
	FuselageLength float64 `json:"fuselage_length" jsonschema:"description=Total fuselage length in feet"`
	MaxDiameter    float64 `json:"max_diameter" jsonschema:"description=Maximum body diameter in feet"`
	NoseLength     float64 `json:"nose_length,omitempty" jsonschema:"description=Nose section length in feet; defaults to 20% of the fuselage length"`
	TailLength     float64 `json:"tail_length,omitempty" jsonschema:"description=Boat-tail section length in feet; defaults to 20% of the fuselage length"`
	NStations      int     `json:"n_stations,omitempty" jsonschema:"description=Number of fuselage stations,default=10"`
}

// Body is the $BODY record: station coordinates with per-station radius,
// cross-section area and upper/lower surface lines.
type Body struct {
	NX float64   `json:"NX"`
	X  []float64 `json:"X"`
	R  []float64 `json:"R"`
	S  []float64 `json:"S"`
	ZU []float64 `json:"ZU"`
	ZL []float64 `json:"ZL"`

	FuselageLength float64           `json:"_fuselage_length"`
	MaxDiameter    float64           `json:"_max_diameter"`
	Segments       map[string]string `json:"_segments"`
}

func (b *Body) fields() []field {
	return []field{
		scalar("NX", b.NX),
		array("X", b.X),
		array("R", b.R),
		array("S", b.S),
		array("ZU", b.ZU),
		array("ZL", b.ZL),
	}
}

// stationRadius evaluates the body profile at station x. The nose grows
// parabolically (r = R·√t), the midsection holds the maximum radius and
// the boat-tail tapers linearly to zero at the end of the fuselage.
func stationRadius(x, length, radius, nose, tail float64) float64 {
	switch {
	case nose > 0 && x < nose:
		return radius * math.Sqrt(x/nose)
	case tail > 0 && x > length-tail:
		return radius * (length - x) / tail
	default:
		return radius
	}
}

// DefineBody samples the fuselage profile at evenly spaced stations and
// returns the $BODY record.
func DefineBody(in BodyInput) (*Body, error) {
	if in.FuselageLength <= 0 {
		return nil, errors.New("Fuselage length must be greater than 0.")
	}
	if in.MaxDiameter <= 0 {
		return nil, errors.New("Maximum diameter must be greater than 0.")
	}

	n := in.NStations
	if n == 0 {
		n = defaultStations
	}
	if n < 2 {
		return nil, errors.New("At least 2 fuselage stations are required.")
	}
	if n > MaxStations {
		return nil, errors.New("DATCOM supports a maximum of 20 fuselage stations.")
	}

	nose := in.NoseLength
	if nose == 0 {
		nose = 0.2 * in.FuselageLength
	}
	tail := in.TailLength
	if tail == 0 {
		tail = 0.2 * in.FuselageLength
	}
	if nose < 0 || tail < 0 || nose+tail > in.FuselageLength {
		return nil, errors.New("Nose and tail lengths must be non-negative and sum to at most the fuselage length.")
	}

	radius := in.MaxDiameter / 2
	xs := make([]float64, n)
	rs := make([]float64, n)
	areas := make([]float64, n)
	zu := make([]float64, n)
	zl := make([]float64, n)
	for i := 0; i < n; i++ {
		x := in.FuselageLength * float64(i) / float64(n-1)
		r := stationRadius(x, in.FuselageLength, radius, nose, tail)
		xs[i] = round2(x)
		rs[i] = round3(r)
		areas[i] = round2(math.Pi * r * r)
		zu[i] = round3(r)
		zl[i] = round3(-r)
	}

	return &Body{
		NX:             float64(n),
		X:              xs,
		R:              rs,
		S:              areas,
		ZU:             zu,
		ZL:             zl,
		FuselageLength: in.FuselageLength,
		MaxDiameter:    in.MaxDiameter,
		Segments: map[string]string{
			"nose":       fmt.Sprintf("parabolic, 0.00 to %.2f ft", nose),
			"midsection": fmt.Sprintf("constant radius %.3f ft, %.2f to %.2f ft", radius, nose, in.FuselageLength-tail),
			"boattail":   fmt.Sprintf("linear taper, %.2f to %.2f ft", in.FuselageLength-tail, in.FuselageLength),
		},
	}, nil
}
