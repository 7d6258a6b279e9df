// Package servicedef defines the parameter structures that describe the test
// fixtures: the fake transport daemon and the scripted console. They are plain
// JSON-taggable data so that test configurations can be logged or loaded
// verbatim.
package servicedef

import "gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

// DaemonParams configures a fake transport daemon instance.
type DaemonParams struct {
	// Network selects the address family, "tcp4" or "tcp6". Empty means "tcp4".
	Network string `json:"network,omitempty"`
	// Port is a fixed port to bind. If unset, an ephemeral port is used and the
	// actual port is reported back from Start.
	Port ldvalue.OptionalInt `json:"port,omitempty"`
}

// ConsoleScript describes one scripted console exchange: the lines the stub
// produces, the command lines it expects back, and how the connection is torn
// down afterward. It is consumed top to bottom with no backtracking.
type ConsoleScript struct {
	Greeting string   `json:"greeting"`
	Expect   []string `json:"expect"`
	Reply    string   `json:"reply"`
	// ForcedReset makes the final close abortive (TCP RST) instead of an orderly
	// shutdown, emulating a peer that exits without closing its socket.
	ForcedReset bool `json:"forcedReset,omitempty"`
	// AcceptTimeoutMS bounds the wait for the peer to connect.
	AcceptTimeoutMS ldvalue.OptionalInt `json:"acceptTimeoutMs,omitempty"`
}
