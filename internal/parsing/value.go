// Package parsing splits vendor "value+unit" strings into numeric values
// and units, the shared contract every provider maps parameters through.
package parsing

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/partscout/partscout/internal/models"
)

// Value is the result of parsing a raw parameter string. Either Typ (single
// value) or Min+Max (range) are set together with Unit, or Text carries the
// raw string when no numeric interpretation exists.
type Value struct {
	Typ  *float64
	Min  *float64
	Max  *float64
	Unit string
	Text string
}

var numberWithUnit = regexp.MustCompile(`^([+-]?[0-9]+(?:[.,][0-9]+)?)\s*([^0-9+-].*)?$`)

var rangeSeparators = []string{"~", "...", "…"}

// ParseValueWithUnit parses strings like "2.5V", "100 kΩ" and ranges like
// "10~20Ω" or "3.0...3.6 V". Ambiguous or unparseable input falls back to
// Text with no unit. Unicode compatibility forms are normalized so µ (micro
// sign) and μ (Greek mu) compare equal.
func ParseValueWithUnit(raw string) Value {
	s := strings.TrimSpace(norm.NFKC.String(raw))
	if s == "" {
		return Value{}
	}

	for _, sep := range rangeSeparators {
		if !strings.Contains(s, sep) {
			continue
		}
		parts := strings.SplitN(s, sep, 2)
		low, lowUnit, ok1 := parseNumber(parts[0])
		high, highUnit, ok2 := parseNumber(parts[1])
		if !ok1 || !ok2 {
			return Value{Text: raw}
		}
		// A unit on the low side must agree with the high side's unit
		if lowUnit != "" && highUnit != "" && lowUnit != highUnit {
			return Value{Text: raw}
		}
		unit := highUnit
		if unit == "" {
			unit = lowUnit
		}
		return Value{Min: &low, Max: &high, Unit: unit}
	}

	if v, unit, ok := parseNumber(s); ok {
		return Value{Typ: &v, Unit: unit}
	}

	return Value{Text: raw}
}

// Parameter builds a models.Parameter from a raw value string
func Parameter(name, raw string) models.Parameter {
	v := ParseValueWithUnit(raw)
	return models.Parameter{
		Name:      name,
		ValueText: v.Text,
		ValueTyp:  v.Typ,
		ValueMin:  v.Min,
		ValueMax:  v.Max,
		Unit:      v.Unit,
	}
}

func parseNumber(s string) (float64, string, bool) {
	s = strings.TrimSpace(s)
	m := numberWithUnit.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}

	num := strings.ReplaceAll(m[1], ",", ".")
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, "", false
	}

	return v, strings.TrimSpace(m[2]), true
}
