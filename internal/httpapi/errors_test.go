package httpapi

import (
	"errors"
	"testing"
)

func TestFriendlyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil error", nil, ""},
		{
			"mapped page timeout",
			errors.New("org.bluez.Error.Failed: Page Timeout"),
			"Device not responding. Make sure it is in pairing mode and nearby.",
		},
		{
			"mapped already exists",
			errors.New("Already Exists"),
			"Device is already paired.",
		},
		{
			"unmapped error falls back to generic message",
			errors.New("org.freedesktop.DBus.Error.NoReply: some internal detail"),
			"Operation failed. Check logs for details.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := friendlyError(tc.err)
			if got != tc.want {
				t.Fatalf("friendlyError(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}
