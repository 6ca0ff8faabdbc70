// Package testutil provides shared helpers for SafeBid tests: a
// controllable clock, key fixtures, and an event-capturing sink.
package testutil
