// Package macaddr validates and formats Bluetooth device addresses.
package macaddr

import (
	"regexp"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

var pattern = regexp.MustCompile(`^[0-9A-Fa-f]{2}(:[0-9A-Fa-f]{2}){5}$`)

// Address is a validated, canonically-formatted "XX:XX:XX:XX:XX:XX" MAC.
type Address string

// Parse validates s against the Bluetooth address pattern and upper-cases it.
func Parse(s string) (Address, error) {
	if !pattern.MatchString(s) {
		return "", fault.Wrap(
			ErrInvalid,
			ftag.With(ftag.InvalidArgument),
			fmsg.With("invalid bluetooth address: "+s),
		)
	}
	return Address(strings.ToUpper(s)), nil
}

// MustParse panics on an invalid address; for use with known-good literals in tests.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Underscored renders the address the way BlueZ and PulseAudio embed it in
// object paths and sink/card names: "AA_BB_CC_DD_EE_FF".
func (a Address) Underscored() string {
	return strings.ReplaceAll(string(a), ":", "_")
}

func (a Address) String() string { return string(a) }

// Valid reports whether s matches the address pattern without allocating an Address.
func Valid(s string) bool {
	return pattern.MatchString(s)
}
