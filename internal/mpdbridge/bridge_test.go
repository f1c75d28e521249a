package mpdbridge

import (
	"testing"

	"github.com/btorch/btaudiod/internal/macaddr"
)

func TestNoopBridgeDoesNothing(t *testing.T) {
	var b Noop
	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")
	// Neither call should panic or block; there's nothing to assert beyond that.
	b.Start(addr, 6600)
	b.Stop(addr)
}
