package client

import "net/netip"

// Binding is the peer a session is pinned to. The zero value is unbound:
// replies are then accepted from any port of the server address.
type Binding struct {
	peer netip.AddrPort
}

func boundTo(peer netip.AddrPort) Binding {
	return Binding{peer: peer}
}

func (b Binding) Bound() bool {
	return b.peer.IsValid()
}

func (b Binding) Peer() (netip.AddrPort, bool) {
	return b.peer, b.peer.IsValid()
}

func (b Binding) String() string {
	if !b.Bound() {
		return "unbound"
	}

	return "bound to " + b.peer.String()
}
