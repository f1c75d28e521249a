package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
)

// bluezErrorMap translates the BlueZ D-Bus error strings this daemon is
// known to surface into messages safe to show a user, per §7. Matching is
// substring-based since the D-Bus error text BlueZ returns often wraps the
// named string with additional context.
var bluezErrorMap = []struct {
	match, friendly string
}{
	{"Page Timeout", "Device not responding. Make sure it is in pairing mode and nearby."},
	{"In Progress", "A pairing or connection attempt is already in progress. Please wait."},
	{"Already Exists", "Device is already paired."},
	{"Does Not Exist", "Device not found. Try scanning again."},
	{"Not Ready", "Bluetooth adapter is not ready. Try again in a moment."},
	{"Connection refused", "Device refused the connection. Is it in pairing mode?"},
	{"br-connection-canceled", "Connection was canceled (device may have been busy)."},
	{"br-connection-busy", "A connection attempt is already in progress. Please wait."},
	{"le-connection-abort-by-local", "Connection aborted locally."},
	{"Software caused connection abort", "Connection dropped unexpectedly. Try again."},
	{"Host is down", "Device is not reachable. Make sure it is powered on and nearby."},
}

// friendlyError maps err to a client-safe message, falling back to a
// generic one for anything unmapped so D-Bus internals never leak out.
func friendlyError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, m := range bluezErrorMap {
		if strings.Contains(msg, m.match) {
			return m.friendly
		}
	}
	return "Operation failed. Check logs for details."
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeFriendlyError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, friendlyError(err))
}
