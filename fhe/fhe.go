package fhe

import (
	"encoding/hex"
	"errors"

	"github.com/RobertxMiller/SafeBid/crypto"
)

// HandleSize is the byte length of an encrypted-value handle.
const HandleSize = 32

// Handle is an opaque reference to a ciphertext held by the capability.
// Handles are comparable and safe to use as map keys; they reveal nothing
// about the underlying value.
type Handle [HandleSize]byte

// ZeroHandle is the absent handle. No ciphertext is ever addressed by it.
var ZeroHandle Handle

// IsZero reports whether the handle is the absent handle.
func (h Handle) IsZero() bool {
	return h == ZeroHandle
}

// String returns the hex encoding of the handle.
func (h Handle) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler so handles serialize as
// hex strings in JSON payloads.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Handle) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(raw) != HandleSize {
		return errors.New("invalid handle length")
	}
	copy(h[:], raw)
	return nil
}

// HandleFromString parses a hex-encoded handle.
func HandleFromString(s string) (Handle, error) {
	var h Handle
	err := h.UnmarshalText([]byte(s))
	return h, err
}

// Proof attests that a ciphertext was produced by the capability from a
// well-formed 32-bit input. A submission with a bad proof is rejected
// before anything is recorded.
type Proof []byte

// Capability errors. Callers classify with errors.Is.
var (
	ErrUnknownHandle = errors.New("fhe: unknown handle")
	ErrInvalidProof  = errors.New("fhe: invalid encryption proof")
	ErrNotAuthorized = errors.New("fhe: decryption not authorized")
)

// Capability is the seam between the auction logic and the encrypted
// runtime. All methods operate on handles; plaintext crosses this
// boundary only at Encrypt and at an authorized Decrypt.
type Capability interface {
	// Encrypt produces a handle for plain owned by owner, along with a
	// validity proof the owner submits together with the handle. The
	// owner is automatically authorized to decrypt their own handle.
	Encrypt(plain uint32, owner crypto.PublicKey) (Handle, Proof, error)

	// Verify checks that proof attests to the given handle.
	Verify(h Handle, proof Proof) error

	// GreaterThan returns an encrypted boolean handle for a > b.
	GreaterThan(a, b Handle) (Handle, error)

	// Select returns a if cond is encrypted-true, else b. The result is a
	// fresh handle with no decryption grants.
	Select(cond, a, b Handle) (Handle, error)

	// Max returns a fresh handle holding max(a, b).
	Max(a, b Handle) (Handle, error)

	// Grant authorizes party to decrypt h.
	Grant(h Handle, party crypto.PublicKey) error

	// Decrypt reveals the plaintext behind h to requester. Fails with
	// ErrNotAuthorized unless requester owns h or holds a grant for it.
	Decrypt(h Handle, requester crypto.PublicKey) (uint32, error)
}
