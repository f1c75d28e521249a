//go:build linux

package bluez

import (
	"os"

	"github.com/godbus/dbus/v5"
)

// closeUnixFD closes a file descriptor handed to us over D-Bus without
// reading from it, per the null HFP profile's NewConnection contract.
func closeUnixFD(fd dbus.UnixFD) error {
	f := os.NewFile(uintptr(fd), "hfp-block")
	if f == nil {
		return nil
	}
	return f.Close()
}
