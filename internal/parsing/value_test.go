package parsing

import "testing"

func fptr(v float64) *float64 { return &v }

func TestParseValueWithUnit_SingleValues(t *testing.T) {
	tests := []struct {
		name  string
		input string
		value float64
		unit  string
	}{
		{"voltage", "2.5V", 2.5, "V"},
		{"resistance with prefix", "100kΩ", 100, "kΩ"},
		{"spaced unit", "47 uF", 47, "uF"},
		{"bare number", "42", 42, ""},
		{"negative value", "-40°C", -40, "°C"},
		{"comma decimal", "2,5V", 2.5, "V"},
		{"percent", "5%", 5, "%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseValueWithUnit(tt.input)
			if got.Typ == nil {
				t.Fatalf("ParseValueWithUnit(%q) Typ = nil, want %v", tt.input, tt.value)
			}
			if *got.Typ != tt.value {
				t.Errorf("ParseValueWithUnit(%q) Typ = %v, want %v", tt.input, *got.Typ, tt.value)
			}
			if got.Unit != tt.unit {
				t.Errorf("ParseValueWithUnit(%q) Unit = %q, want %q", tt.input, got.Unit, tt.unit)
			}
			if got.Min != nil || got.Max != nil {
				t.Errorf("ParseValueWithUnit(%q) should not set range bounds", tt.input)
			}
			if got.Text != "" {
				t.Errorf("ParseValueWithUnit(%q) Text = %q, want empty", tt.input, got.Text)
			}
		})
	}
}

func TestParseValueWithUnit_Ranges(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		min, max float64
		unit     string
	}{
		{"tilde range", "10~20Ω", 10, 20, "Ω"},
		{"ellipsis range", "3.0...3.6 V", 3, 3.6, "V"},
		{"unit on both sides", "10V~20V", 10, 20, "V"},
		{"negative low bound", "-40~85°C", -40, 85, "°C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseValueWithUnit(tt.input)
			if got.Min == nil || got.Max == nil {
				t.Fatalf("ParseValueWithUnit(%q) should set Min and Max, got %+v", tt.input, got)
			}
			if *got.Min != tt.min || *got.Max != tt.max {
				t.Errorf("ParseValueWithUnit(%q) = [%v, %v], want [%v, %v]", tt.input, *got.Min, *got.Max, tt.min, tt.max)
			}
			if got.Unit != tt.unit {
				t.Errorf("ParseValueWithUnit(%q) Unit = %q, want %q", tt.input, got.Unit, tt.unit)
			}
			if got.Typ != nil {
				t.Errorf("ParseValueWithUnit(%q) should not set Typ for a range", tt.input)
			}
		})
	}
}

func TestParseValueWithUnit_TextFallback(t *testing.T) {
	for _, input := range []string{"some text", "N/A", "see datasheet"} {
		got := ParseValueWithUnit(input)
		if got.Text != input {
			t.Errorf("ParseValueWithUnit(%q) Text = %q, want raw input", input, got.Text)
		}
		if got.Unit != "" || got.Typ != nil || got.Min != nil || got.Max != nil {
			t.Errorf("ParseValueWithUnit(%q) should only set Text, got %+v", input, got)
		}
	}
}

func TestParseValueWithUnit_Empty(t *testing.T) {
	got := ParseValueWithUnit("   ")
	if got.Text != "" || got.Typ != nil || got.Min != nil || got.Max != nil {
		t.Errorf("ParseValueWithUnit(blank) = %+v, want zero value", got)
	}
}

func TestParseValueWithUnit_MismatchedRangeUnits(t *testing.T) {
	// Units disagreeing across the range is ambiguous; keep the raw text
	got := ParseValueWithUnit("10V~20A")
	if got.Min != nil || got.Max != nil {
		t.Errorf("ParseValueWithUnit(10V~20A) should not parse as range, got %+v", got)
	}
	if got.Text != "10V~20A" {
		t.Errorf("ParseValueWithUnit(10V~20A) Text = %q, want raw input", got.Text)
	}
}

func TestParseValueWithUnit_NormalizesMicroSign(t *testing.T) {
	// U+00B5 micro sign and U+03BC Greek mu normalize to the same rune
	a := ParseValueWithUnit("10µF")
	b := ParseValueWithUnit("10μF")

	if a.Unit != b.Unit {
		t.Errorf("micro sign and Greek mu should normalize equal: %q vs %q", a.Unit, b.Unit)
	}
}

func TestParameter(t *testing.T) {
	p := Parameter("Supply Voltage", "3.3V")
	if p.Name != "Supply Voltage" {
		t.Errorf("Parameter() Name = %q", p.Name)
	}
	if p.ValueTyp == nil || *p.ValueTyp != 3.3 || p.Unit != "V" {
		t.Errorf("Parameter() = %+v, want typ 3.3 V", p)
	}

	p = Parameter("Notes", "halogen free")
	if p.ValueText != "halogen free" || p.Unit != "" {
		t.Errorf("Parameter() fallback = %+v", p)
	}
}
