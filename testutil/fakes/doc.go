// Package fakes provides in-memory implementations of the capabilities consumed by the dispatchers:
// a Store that is also a Transactor, a configurable authorization Policy and validation Rules.
// All of them can share a Recorder to assert the order of calls across capabilities.
package fakes
