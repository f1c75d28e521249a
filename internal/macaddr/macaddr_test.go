package macaddr

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    Address
		wantErr bool
	}{
		{"valid uppercase", "AA:BB:CC:DD:EE:FF", Address("AA:BB:CC:DD:EE:FF"), false},
		{"valid lowercase gets upper-cased", "aa:bb:cc:dd:ee:ff", Address("AA:BB:CC:DD:EE:FF"), false},
		{"mixed case", "Aa:Bb:Cc:Dd:Ee:Ff", Address("AA:BB:CC:DD:EE:FF"), false},
		{"too short", "AA:BB:CC:DD:EE", "", true},
		{"no separators", "AABBCCDDEEFF", "", true},
		{"empty", "", "", true},
		{"bad hex digit", "GG:BB:CC:DD:EE:FF", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got none", tc.in)
				}
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("expected ErrInvalid, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Parse(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestMustParsePanicsOnInvalid(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for invalid address")
		}
	}()
	MustParse("not-an-address")
}

func TestUnderscored(t *testing.T) {
	a := MustParse("AA:BB:CC:DD:EE:FF")
	if got := a.Underscored(); got != "AA_BB_CC_DD_EE_FF" {
		t.Fatalf("Underscored() = %q", got)
	}
}

func TestValid(t *testing.T) {
	if !Valid("AA:BB:CC:DD:EE:FF") {
		t.Fatal("expected valid address to report true")
	}
	if Valid("nope") {
		t.Fatal("expected invalid address to report false")
	}
}
