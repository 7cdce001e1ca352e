package extract

import (
	"strings"
	"testing"
)

func TestBudget(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"around 1.5 cr for a flat", "1.5 Cr", true},
		{"150 lakhs works", "150.0 Lakh", true},
		{"2 Crore", "2.0 Cr", true},
		{"₹ 3 crores max", "3.0 Cr", true},
		{"budget 90lakh", "90.0 Lakh", true},
		{"1.5 Cr or 150 lakh", "1.5 Cr", true},
		{"80 lakh or 1 cr", "1.0 Cr", true},
		{"no idea yet", "", false},
		{"", "", false},
		{"crore", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Budget(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Budget(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
			if ok && !strings.HasSuffix(got, " Cr") && !strings.HasSuffix(got, " Lakh") {
				t.Errorf("unexpected unit suffix in %q", got)
			}
		})
	}
}

func TestMobileNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"9876543210", "9876543210", true},
		{"my number is +919876543210 thanks", "+919876543210", true},
		{"call 98765-43210", "", false},
		{"+91 9876543210", "+919876543210", true},
		{"+91-9876543210", "+919876543210", true},
		{"5876543210", "", false},
		{"98765432101", "", false},
		{"no number", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := MobileNumber(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("MobileNumber(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalizeIndianPhone(t *testing.T) {
	tests := map[string]string{
		"98765 43210":     "+919876543210",
		"+91-98765-43210": "+919876543210",
		"(+44) 20 7946":   "+44207946",
		"":                "",
	}
	for in, want := range tests {
		if got := NormalizeIndianPhone(in); got != want {
			t.Errorf("NormalizeIndianPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLooksLikeVisitDate(t *testing.T) {
	for _, ok := range []string{"05/11/2025", "5/1/2026", "31-12-2025", " 05/11/2025 "} {
		if !LooksLikeVisitDate(ok) {
			t.Errorf("expected %q to be accepted", ok)
		}
	}
	for _, bad := range []string{"tomorrow", "2025/11/05", "05/11/25", ""} {
		if LooksLikeVisitDate(bad) {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}
