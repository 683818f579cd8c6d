// Package stringpool implements a single growing byte arena holding
// every interned string, each entry individually ChaCha20-encrypted at
// intern time with its own freshly generated key/nonce, and the emitted
// native accessors that decrypt an entry lazily and idempotently.
//
// The cipher is golang.org/x/crypto/chacha20, the sibling of
// golang.org/x/crypto/sha3 that vybium-vybium-starks-vm depends on
// (internal/vybium-starks-vm/utils/channel.go) — this module exercises a
// different member of the same dependency for the exact primitive the
// spec names (ChaCha20, 20 rounds, 256-bit key, 96-bit nonce).
package stringpool

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/chacha20"
)

// offsetMask is XORed into every handle returned by Intern so that source-
// level decimals emitted into generated code never reveal raw offsets
//.
const offsetMask uint64 = 0xAD9CF0

const (
	keySize   = chacha20.KeySize   // 32 bytes / 256 bits
	nonceSize = chacha20.NonceSize // 12 bytes / 96 bits
)

// entry records where one interned string lives in pool and how to decrypt
// it again at runtime.
type entry struct {
	offset int
	length int
	key    [keySize]byte
	nonce  [nonceSize]byte
}

// Pool is the encrypted string pool for one archive-compilation
// session. The zero value is not usable; construct with New.
type Pool struct {
	mu         sync.Mutex
	pool       []byte
	entries    []entry
	byText     map[string]int // text -> index into entries, for dedup
	obfuscated bool
}

// New returns an empty Pool with obfuscation enabled.
func New() *Pool {
	return &Pool{byText: make(map[string]int), obfuscated: true}
}

// Handle is the opaque value returned by Intern; Length recovers the entry
// size for the code generator that must also emit the key/nonce bytes
// alongside the masked offset.
type Handle struct {
	raw    uint64
	Length int
}

// Encoded is the masked 64-bit integer literal emitted into generated
// source in place of a raw offset.
func (h Handle) Encoded() uint64 { return h.raw ^ offsetMask }

// Intern appends text to the pool, freshly encrypts it in place with a new
// random (key, nonce), and returns a Handle. Interning the same text twice
// returns the same Handle — duplicate strings alias one ciphertext blob
// (and, necessarily, one key/nonce) rather than being re-encrypted.
func (p *Pool) Intern(text string) Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.byText[text]; ok {
		e := p.entries[idx]
		return Handle{raw: uint64(e.offset), Length: e.length}
	}

	offset := len(p.pool)
	plain := []byte(text)
	p.pool = append(p.pool, plain...)

	var e entry
	e.offset = offset
	e.length = len(plain)

	if p.obfuscated {
		if _, err := rand.Read(e.key[:]); err != nil {
			panic(fmt.Errorf("stringpool: generating key: %w", err))
		}
		if _, err := rand.Read(e.nonce[:]); err != nil {
			panic(fmt.Errorf("stringpool: generating nonce: %w", err))
		}

		cipher, err := chacha20.NewUnauthenticatedCipher(e.key[:], e.nonce[:])
		if err != nil {
			panic(fmt.Errorf("stringpool: building cipher: %w", err))
		}
		// Encrypt the freshly appended bytes in place; the arena now
		// holds ciphertext starting at offset, never the plaintext we
		// just copied.
		dst := p.pool[offset : offset+len(plain)]
		cipher.XORKeyStream(dst, dst)
	}

	idx := len(p.entries)
	p.entries = append(p.entries, e)
	p.byText[text] = idx

	return Handle{raw: uint64(offset), Length: e.length}
}

// EncryptedBytes exposes the final arena bytes, for the integrity-hash
// collaborator (pkg/collab.IntegrityHasher) to consume. Despite the name,
// when obfuscation was disabled via Reset this returns the plaintext
// arena — callers needing the on-disk wire bytes should prefer this over
// reassembling Build's literal text.
func (p *Pool) EncryptedBytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, len(p.pool))
	copy(out, p.pool)
	return out
}

// Reset clears the pool between archive-compilation sessions.
// obfuscateStrings controls whether subsequent Intern calls encrypt
// entries or append them in plaintext.
func (p *Pool) Reset(obfuscateStrings bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pool = nil
	p.entries = nil
	p.byText = make(map[string]int)
	p.obfuscated = obfuscateStrings
}

// Build emits the byte-array initializer and the four runtime functions
// the wire contract requires: decode_key, decode_nonce,
// decrypt_string (4-argument form, per the resolved open question in
// the design notes), clear_string, plus get_pool/get_pool_size.
func (p *Pool) Build(poolArrayName string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "static unsigned char %s[%d] = {", poolArrayName, len(p.pool))
	for i, by := range p.pool {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", by)
	}
	b.WriteString("};\n")

	fmt.Fprintf(&b, "static unsigned char %s_decrypted[%d];\n", poolArrayName, len(p.pool))

	fmt.Fprintf(&b, "unsigned char *%s_get_pool(void) { return %s; }\n", poolArrayName, poolArrayName)
	fmt.Fprintf(&b, "long %s_get_pool_size(void) { return %dL; }\n", poolArrayName, len(p.pool))

	// decode_key/decode_nonce are the seam between a call site's inline
	// key/nonce byte literal and decrypt_string's ABI: today they are
	// pass-throughs, but every per-string key/nonce flows through them
	// rather than straight into decrypt_string, so a future revision can
	// swap the call-site literal for an obfuscated/packed form without
	// touching every emitted call.
	b.WriteString("unsigned char *decode_key(unsigned char *raw) { return raw; }\n")
	b.WriteString("unsigned char *decode_nonce(unsigned char *raw) { return raw; }\n")

	fmt.Fprintf(&b, "void decrypt_string(unsigned char *key, unsigned char *nonce, long offset, long length) {\n")
	fmt.Fprintf(&b, "  if (%s_decrypted[offset]) return;\n", poolArrayName)
	fmt.Fprintf(&b, "  chacha20_xor(%s + offset, length, key, nonce);\n", poolArrayName)
	fmt.Fprintf(&b, "  %s_decrypted[offset] = 1;\n", poolArrayName)
	b.WriteString("}\n")

	b.WriteString("void clear_string(long offset, long length) {\n")
	fmt.Fprintf(&b, "  memset(%s + offset, 0, length);\n", poolArrayName)
	fmt.Fprintf(&b, "  %s_decrypted[offset] = 0;\n", poolArrayName)
	b.WriteString("}\n")

	return b.String()
}

// KeyNonceOf returns the raw key/nonce bytes for the entry at handle h, so
// the code generator can render decode_key/decode_nonce literals.
func (p *Pool) KeyNonceOf(h Handle) (key [keySize]byte, nonce [nonceSize]byte, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if uint64(e.offset) == h.raw {
			return e.key, e.nonce, true
		}
	}
	return key, nonce, false
}
