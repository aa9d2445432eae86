package domain

import (
	"math"
	"testing"
)

func TestParseTrackTime(t *testing.T) {
	cases := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{input: "12.02", want: 12.02},
		{input: "01:02.50", want: 62.5},
		{input: "4:05.33", want: 245.33},
		{input: " 59.90 ", want: 59.9},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "0", wantErr: true},
		{input: "-3.2", wantErr: true},
		{input: "1:75.00", wantErr: true},
		{input: "-1:10.00", wantErr: true},
		{input: "1:2:3", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseTrackTime(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parse %q: %v", tc.input, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("parse %q: expected %v, got %v", tc.input, tc.want, got)
		}
	}
}

func TestFormatTrackTime(t *testing.T) {
	if got := FormatTrackTime(62.5); got != "01:02.50" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := FormatTrackTime(9.87); got != "00:09.87" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := FormatTrackTime(-1); got != "00:00.00" {
		t.Fatalf("negative seconds must clamp, got %q", got)
	}
}

func TestParseFieldDistance(t *testing.T) {
	if got, err := ParseFieldDistance(" 6.42 "); err != nil || got != 6.42 {
		t.Fatalf("expected 6.42, got %v (%v)", got, err)
	}
	for _, input := range []string{"", "abc", "0", "-2.5"} {
		if _, err := ParseFieldDistance(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}
