package stringpool

import "golang.org/x/crypto/chacha20"

// Decrypt reverses the encryption Intern applied to handle h against the
// arena bytes returned by EncryptedBytes, recovering the original
// plaintext. This is the Go-side mirror of the emitted decrypt_string
// native function, used to test the round-trip law in 
// ("decrypt(encrypt(s, key, nonce)) = s") without compiling the generated
// C-family source.
func (p *Pool) Decrypt(arena []byte, h Handle) (string, bool) {
	key, nonce, ok := p.KeyNonceOf(h)
	if !ok {
		return "", false
	}
	if int(h.raw)+h.Length > len(arena) {
		return "", false
	}
	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return "", false
	}
	out := make([]byte, h.Length)
	cipher.XORKeyStream(out, arena[h.raw:int(h.raw)+h.Length])
	return string(out), true
}
