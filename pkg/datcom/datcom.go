// Package datcom converts standard aircraft design parameters into the
// namelist records required by the USAF Digital DATCOM program.
//
// The package is pure computation: no I/O, no clients. Each conversion
// validates its inputs and returns a record whose JSON form doubles as the
// tool observation handed back to the model, including the underscore
// prefixed annotation fields that show how every value was derived. The
// Deck type assembles the records into a for005 card file.
package datcom

import (
	"math"
	"strconv"
	"strings"
)

// round rounds v half away from zero to the given number of decimals.
// Negative zero is normalized so card output never shows "-0.0".
func round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	r := math.Round(v*scale) / scale
	if r == 0 {
		return 0
	}
	return r
}

func round1(v float64) float64 { return round(v, 1) }
func round2(v float64) float64 { return round(v, 2) }
func round3(v float64) float64 { return round(v, 3) }

// ftoa renders a float in its shortest decimal form, for echoing input
// values inside formula annotations ("530", "2.8").
func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// freal renders a FORTRAN real literal: shortest decimal form with a
// guaranteed decimal point ("40000.0", "-3.0", "0.95").
func freal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
