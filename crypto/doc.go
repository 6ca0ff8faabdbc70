// Package crypto provides the identity primitives used across SafeBid.
//
// Every party in the system - sellers, bidders, and the auction authority
// itself - is identified by an Ed25519 public key. Signatures over
// serialized requests are how the service attributes an operation to a
// caller; there is no session or token layer on top.
//
// The package wraps the standard library's ed25519 with byte-slice key
// types that are convenient to serialize, compare, and use as map keys.
// Bid confidentiality is not handled here; see the fhe package for the
// encrypted-value capability.
package crypto
