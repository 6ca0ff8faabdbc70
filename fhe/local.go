package fhe

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/RobertxMiller/SafeBid/crypto"
)

// ciphertext is a sealed value plus its access list. Values are kept
// AES-GCM sealed in memory and unsealed only inside capability operations.
type ciphertext struct {
	sealed []byte
	owner  string
	grants map[string]bool
}

// LocalCapability implements Capability in-process. It simulates an
// external homomorphic runtime by unsealing operands internally; the
// plaintext never crosses the package boundary outside an authorized
// Decrypt. Safe for concurrent use.
type LocalCapability struct {
	sealingKey []byte
	provingKey []byte

	mu    sync.RWMutex
	store map[Handle]*ciphertext
}

// NewLocalCapability creates a capability instance with fresh random
// sealing and proving keys. Handles from one instance are meaningless to
// another.
func NewLocalCapability() (*LocalCapability, error) {
	sealingKey := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, sealingKey); err != nil {
		return nil, fmt.Errorf("failed to generate sealing key: %w", err)
	}

	provingKey := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, provingKey); err != nil {
		return nil, fmt.Errorf("failed to generate proving key: %w", err)
	}

	return &LocalCapability{
		sealingKey: sealingKey,
		provingKey: provingKey,
		store:      make(map[Handle]*ciphertext),
	}, nil
}

// Encrypt seals plain under the capability key and returns its handle and
// validity proof. The owner may always decrypt their own handle.
func (c *LocalCapability) Encrypt(plain uint32, owner crypto.PublicKey) (Handle, Proof, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storeValue(plain, owner.String())
}

// Verify checks the HMAC proof binding a handle to this capability
// instance.
func (c *LocalCapability) Verify(h Handle, proof Proof) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.store[h]; !ok {
		return ErrUnknownHandle
	}
	if !hmac.Equal(proof, c.proveHandle(h)) {
		return ErrInvalidProof
	}
	return nil
}

// GreaterThan compares two handles, producing an encrypted boolean.
func (c *LocalCapability) GreaterThan(a, b Handle) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	va, err := c.unsealHandle(a)
	if err != nil {
		return ZeroHandle, err
	}
	vb, err := c.unsealHandle(b)
	if err != nil {
		return ZeroHandle, err
	}

	var result uint32
	if va > vb {
		result = 1
	}
	h, _, err := c.storeValue(result, "")
	return h, err
}

// Select returns a fresh handle holding a's value when cond is
// encrypted-true and b's value otherwise.
func (c *LocalCapability) Select(cond, a, b Handle) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	vc, err := c.unsealHandle(cond)
	if err != nil {
		return ZeroHandle, err
	}
	va, err := c.unsealHandle(a)
	if err != nil {
		return ZeroHandle, err
	}
	vb, err := c.unsealHandle(b)
	if err != nil {
		return ZeroHandle, err
	}

	result := vb
	if vc != 0 {
		result = va
	}
	h, _, err := c.storeValue(result, "")
	return h, err
}

// Max returns a fresh handle holding the larger of the two values.
func (c *LocalCapability) Max(a, b Handle) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	va, err := c.unsealHandle(a)
	if err != nil {
		return ZeroHandle, err
	}
	vb, err := c.unsealHandle(b)
	if err != nil {
		return ZeroHandle, err
	}

	result := va
	if vb > va {
		result = vb
	}
	h, _, err := c.storeValue(result, "")
	return h, err
}

// Grant authorizes party to decrypt h.
func (c *LocalCapability) Grant(h Handle, party crypto.PublicKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ct, ok := c.store[h]
	if !ok {
		return ErrUnknownHandle
	}
	ct.grants[party.String()] = true
	return nil
}

// Decrypt reveals the plaintext behind h to requester if the requester
// owns the handle or holds an explicit grant.
func (c *LocalCapability) Decrypt(h Handle, requester crypto.PublicKey) (uint32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ct, ok := c.store[h]
	if !ok {
		return 0, ErrUnknownHandle
	}

	key := requester.String()
	if ct.owner != key && !ct.grants[key] {
		return 0, ErrNotAuthorized
	}
	return c.unseal(ct.sealed)
}

// storeValue seals a value, derives its handle and records the access
// list. Caller must hold the write lock.
func (c *LocalCapability) storeValue(plain uint32, owner string) (Handle, Proof, error) {
	sealed, err := c.seal(plain)
	if err != nil {
		return ZeroHandle, nil, err
	}

	// Handle identity binds the ciphertext to this instance's proving key
	// so handles are unforgeable and unlinkable to their plaintext.
	h := Handle(sha3.Sum256(append(sealed, c.provingKey...)))

	c.store[h] = &ciphertext{
		sealed: sealed,
		owner:  owner,
		grants: make(map[string]bool),
	}
	return h, c.proveHandle(h), nil
}

func (c *LocalCapability) proveHandle(h Handle) Proof {
	mac := hmac.New(sha256.New, c.provingKey)
	mac.Write(h[:])
	return mac.Sum(nil)
}

func (c *LocalCapability) seal(plain uint32) ([]byte, error) {
	block, err := aes.NewCipher(c.sealingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], plain)

	sealed := aesgcm.Seal(nil, nonce, buf[:], nil)
	return append(nonce, sealed...), nil
}

func (c *LocalCapability) unsealHandle(h Handle) (uint32, error) {
	ct, ok := c.store[h]
	if !ok {
		return 0, ErrUnknownHandle
	}
	return c.unseal(ct.sealed)
}

func (c *LocalCapability) unseal(sealed []byte) (uint32, error) {
	block, err := aes.NewCipher(c.sealingKey)
	if err != nil {
		return 0, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return 0, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := aesgcm.NonceSize()
	if len(sealed) < nonceSize {
		return 0, fmt.Errorf("sealed value too short")
	}

	plain, err := aesgcm.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return 0, fmt.Errorf("failed to unseal: %w", err)
	}
	if len(plain) != 4 {
		return 0, fmt.Errorf("unexpected plaintext length %d", len(plain))
	}
	return binary.BigEndian.Uint32(plain), nil
}
