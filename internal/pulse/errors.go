package pulse

import "errors"

// ErrUnavailable is returned when the facade has no live connection to the
// PulseAudio server, either because Connect has not succeeded yet or the
// connection was lost.
var ErrUnavailable = errors.New("pulse: server unavailable")

// ErrProfileNotSupported is returned when none of a card's candidate
// profile names exist on the card (§4.2's profile-activation contract).
var ErrProfileNotSupported = errors.New("pulse: no matching card profile")

// ErrCardNotFound is returned when no bluez_card object exists for an
// address.
var ErrCardNotFound = errors.New("pulse: card not found")
