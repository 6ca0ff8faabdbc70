// Package fhe defines the encrypted-value capability SafeBid runs on.
//
// Bid amounts are 32-bit unsigned integers that exist inside the service
// only as opaque handles. The capability exposes exactly the operations
// the auction logic needs and nothing more:
//
//   - Encrypt: turn a plaintext into a handle plus a validity proof
//   - Verify: check a proof before a handle is ever recorded
//   - GreaterThan: compare two handles, yielding an encrypted boolean
//   - Select: conditionally pick one of two handles under an encrypted
//     boolean, without revealing which was taken
//   - Max: the running-maximum convenience built from the two above
//   - Grant / Decrypt: authorization-gated decryption tied to a party's
//     public key
//
// There is deliberately no plaintext accessor on a handle. Decryption
// requires an explicit per-handle grant, and the auction logic only ever
// grants bidders access to their own submitted bids and the auction
// authority access to leader-index handles at resolution.
//
// LocalCapability is an in-process implementation backed by sealed
// in-memory ciphertexts. It provides the interface's semantics for tests,
// demos and single-node deployments; a production deployment points the
// Capability interface at an external homomorphic-encryption runtime.
package fhe
