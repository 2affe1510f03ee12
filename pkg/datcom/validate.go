package datcom

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Report is the outcome of a parameter consistency check. Errors are
// violations DATCOM would reject; warnings flag values that are legal but
// outside typical design practice.
type Report struct {
	Status            string   `json:"status"`
	Errors            []string `json:"errors"`
	Warnings          []string `json:"warnings"`
	CheckedParameters []string `json:"checked_parameters"`
	Summary           string   `json:"summary"`
}

// Validate checks a set of DATCOM parameters for internal consistency.
// Underscore-prefixed annotation keys are listed but never flagged. The
// check never fails hard: malformed values simply do not match any rule.
func Validate(params map[string]interface{}) *Report {
	errs := []string{}
	warns := []string{}

	root, hasRoot := numeric(params["CHRDR"])
	tip, hasTip := numeric(params["CHRDTP"])
	if hasRoot && hasTip && tip > root {
		errs = append(errs, "Tip chord (CHRDTP) should not be greater than root chord (CHRDR).")
	}

	span, hasSpan := numeric(params["SSPN"])
	exposed, hasExposed := numeric(params["SSPNE"])
	if hasSpan && hasExposed && exposed > span {
		errs = append(errs, "Exposed semi-span (SSPNE) should not be greater than theoretical semi-span (SSPN).")
	}

	if sweep, ok := numeric(params["SAVSI"]); ok && math.Abs(sweep) > 70 {
		warns = append(warns, fmt.Sprintf("Sweep angle of %s° is outside the typical range (±70°).", freal(sweep)))
	}
	if dihedral, ok := numeric(params["DHDADI"]); ok && math.Abs(dihedral) > 15 {
		warns = append(warns, fmt.Sprintf("Dihedral angle of %s° is outside the typical range (±15°).", freal(dihedral)))
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.HasPrefix(k, "_") {
			continue
		}
		if n, ok := integral(params[k]); ok {
			warns = append(warns, fmt.Sprintf("Parameter %s=%d should be a float (e.g., %.1f).", k, n, float64(n)))
		}
	}

	status := "PASS"
	if len(errs) > 0 {
		status = "FAIL"
	}
	return &Report{
		Status:            status,
		Errors:            errs,
		Warnings:          warns,
		CheckedParameters: keys,
		Summary:           fmt.Sprintf("%d errors, %d warnings.", len(errs), len(warns)),
	}
}

// numeric coerces any numeric representation a decoded tool argument can
// arrive as into a float64.
func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// integral reports whether v is an integer-typed value. Arguments decoded
// with json.Decoder.UseNumber keep the distinction between 1 and 1.0, so a
// bare integer literal in a tool call is caught here.
func integral(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		s := n.String()
		if strings.ContainsAny(s, ".eE") {
			return 0, false
		}
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
