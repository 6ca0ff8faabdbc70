// Package protocol defines SafeBid's wire format.
//
// State-changing requests travel as signed envelopes: the JSON-serialized
// request is signed with the caller's Ed25519 key, and the recovered
// signer is the caller identity for authorization checks (seller-only,
// non-seller-only, winner-only). Read-only queries are plain JSON.
//
// The envelope is generic over the request type so each operation keeps a
// concrete, documented payload instead of an untyped blob.
package protocol
