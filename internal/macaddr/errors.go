package macaddr

import "errors"

// ErrInvalid is the sentinel wrapped by Parse on a malformed address.
var ErrInvalid = errors.New("macaddr: malformed address")
