package datcom

import (
	"strings"
)

// cardWidth is the column budget for a single for005 card; wrapping below
// the classic 80-column limit keeps decks readable in fixed-width editors.
const cardWidth = 72

// field is one namelist assignment, rendered KEY=v for scalars and
// KEY(1)=v1,v2,… for arrays.
type field struct {
	key    string
	values []float64
	isArr  bool
}

func scalar(key string, v float64) field { return field{key: key, values: []float64{v}} }

func array(key string, vs []float64) field { return field{key: key, values: vs, isArr: true} }

// formatNamelist renders one namelist as card lines. The block opens with
// " $NAME", closes with "$" after the last value, and wraps at commas;
// continuation lines are indented two spaces.
func formatNamelist(name string, fields []field) []string {
	var atoms []string
	for _, f := range fields {
		if len(f.values) == 0 {
			continue
		}
		key := f.key
		if f.isArr {
			key += "(1)"
		}
		for i, v := range f.values {
			if i == 0 {
				atoms = append(atoms, key+"="+freal(v))
			} else {
				atoms = append(atoms, freal(v))
			}
		}
	}

	lines := []string{" $" + name}
	cur := 0
	for i, atom := range atoms {
		sep := ","
		if i == 0 {
			sep = " "
		}
		if i > 0 && len(lines[cur])+len(sep)+len(atom) > cardWidth {
			lines[cur] += ","
			lines = append(lines, "  "+atom)
			cur++
			continue
		}
		lines[cur] += sep + atom
	}
	lines[cur] += "$"
	return lines
}

// Deck assembles namelist records into a complete for005 input file.
// Absent records are omitted; the remaining blocks keep the fixed order
// FLTCON, SYNTHS, BODY, WGPLNF, HTPLNF, VTPLNF.
type Deck struct {
	// CaseID names the configuration on the CASEID card. Empty defaults
	// to "CUSTOM AIRCRAFT".
	CaseID string
	// Header lines are emitted as leading "* " comment cards naming the
	// provenance of the inputs.
	Header []string

	Fltcon *Fltcon
	Synths *Synths
	Body   *Body
	Wing   *WingPlanform
	HTail  *TailPlanform
	VTail  *TailPlanform
}

// Format renders the deck as card text. Lines are LF-terminated, every
// real literal carries a decimal point, and each planform block is
// preceded by its NACA airfoil card.
func (d *Deck) Format() string {
	caseID := d.CaseID
	if caseID == "" {
		caseID = "CUSTOM AIRCRAFT"
	}

	var lines []string
	for _, h := range d.Header {
		lines = append(lines, "* "+h)
	}
	lines = append(lines, "CASEID ----- "+caseID+" -----")
	lines = append(lines, "DIM FT")

	if d.Fltcon != nil {
		lines = append(lines, formatNamelist("FLTCON", d.Fltcon.fields())...)
	}
	if d.Synths != nil {
		lines = append(lines, formatNamelist("SYNTHS", d.Synths.fields())...)
	}
	if d.Body != nil {
		lines = append(lines, formatNamelist("BODY", d.Body.fields())...)
	}
	if d.Wing != nil {
		lines = append(lines, d.Wing.Airfoil)
		lines = append(lines, formatNamelist("WGPLNF", d.Wing.fields())...)
	}
	if d.HTail != nil {
		lines = append(lines, d.HTail.Airfoil)
		lines = append(lines, formatNamelist("HTPLNF", d.HTail.fields())...)
	}
	if d.VTail != nil {
		lines = append(lines, d.VTail.Airfoil)
		lines = append(lines, formatNamelist("VTPLNF", d.VTail.fields())...)
	}

	lines = append(lines, "BUILD", "NEXT CASE")
	return strings.Join(lines, "\n") + "\n"
}
