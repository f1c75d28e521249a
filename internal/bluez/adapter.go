//go:build linux

package bluez

import (
	"os"
	"path/filepath"
	"strings"
)

// enrichFromSysfs fills in hardware model/vendor/product fields that BlueZ's
// Modalias property may omit, by reading
// /sys/class/bluetooth/hciN/device/{modalias,idVendor,idProduct}. This is
// read-only local enrichment of list_adapters(), not the Home-Assistant
// hardware-registry lookup the core leaves external.
func enrichFromSysfs(iface string) (modalias, vendor, product string) {
	base := filepath.Join("/sys/class/bluetooth", iface, "device")

	if b, err := os.ReadFile(filepath.Join(base, "modalias")); err == nil {
		modalias = strings.TrimSpace(string(b))
	}
	if b, err := os.ReadFile(filepath.Join(base, "idVendor")); err == nil {
		vendor = strings.TrimSpace(string(b))
	}
	if b, err := os.ReadFile(filepath.Join(base, "idProduct")); err == nil {
		product = strings.TrimSpace(string(b))
	}
	return modalias, vendor, product
}

// RefreshHardwareInfo enriches each known adapter's USB vendor/product from
// sysfs when the D-Bus Modalias property alone didn't yield one.
func (s *Session) RefreshHardwareInfo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.adapters {
		if a.USBVendor != "" && a.USBProduct != "" {
			continue
		}
		modalias, vendor, product := enrichFromSysfs(a.Interface)
		if a.Modalias == "" {
			a.Modalias = modalias
		}
		if vendor != "" {
			a.USBVendor = vendor
		}
		if product != "" {
			a.USBProduct = product
		}
	}
}
