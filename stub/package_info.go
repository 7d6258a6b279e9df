// Package stub implements the fake protocol peers that the test suite runs the
// client binary against: a fake transport daemon that performs the connection
// handshake over any number of concurrent sockets, and a single-connection
// scripted console that can terminate either gracefully or with a forced TCP
// reset.
//
// Both peers are instrumented rather than realistic: they implement exactly as
// much of their protocols as is needed to validate the client's handshake,
// connect/reconnect, and error-reporting logic, and they give the test author
// deterministic control over what is sent and how connections are torn down.
package stub
