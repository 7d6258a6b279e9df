// Package testframework contains the low-level test runner infrastructure that is
// not specific to any protocol domain.
//
// It provides a notion of a test context which is similar to Go's *testing.T,
// allowing pieces of test logic to be associated with a test identifier, to make
// assertions with the standard assert/require packages, and to accumulate
// success/failure results outside of the Go test runner.
//
// The domain-specific code that knows what is being tested is responsible for
// providing the fixtures each test interacts with and a domain-specific test API
// on top of the test context.
package testframework
