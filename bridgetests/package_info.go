// Package bridgetests contains the bridge client contract tests themselves and
// their supporting API.
//
// Each test starts one or more fake peers from the stub package, runs the real
// client binary against them, and asserts on the client's observable output and
// exit behavior. Test harness infrastructure that is not specific to the bridge
// protocol is in the lower-level testframework package.
package bridgetests
