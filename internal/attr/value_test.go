package attr

import "testing"

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Float(23.5), "23.50"},
		{Float(-5), "-5.00"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{String("0001000"), "0001000"},
	}
	for _, tc := range tests {
		if got := tc.v.String(); got != tc.want {
			t.Fatalf("%#v.String() = %q, want %q", tc.v, got, tc.want)
		}
	}
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(KindFloat, "21.5")
	if err != nil || v.Float != 21.5 {
		t.Fatalf("ParseValue(float, 21.5) = %v, %v", v, err)
	}
	v, err = ParseValue(KindBool, "true")
	if err != nil || !v.Bool {
		t.Fatalf("ParseValue(bool, true) = %v, %v", v, err)
	}
	v, err = ParseValue(KindString, "whatever text")
	if err != nil || v.Str != "whatever text" {
		t.Fatalf("ParseValue(string) = %v, %v", v, err)
	}
	if _, err := ParseValue(KindFloat, "abc"); err == nil {
		t.Fatalf("expected error for bad float")
	}
	if _, err := ParseValue(KindBool, "maybe"); err == nil {
		t.Fatalf("expected error for bad bool")
	}
}
