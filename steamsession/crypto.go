package steamsession

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"math/big"
)

// rsaEncrypt RSA-encrypts data under the PKCS#1 v1.5 padding Steam expects
// for the mobile-auth session key.
func rsaEncrypt(mod string, exp int64, data []byte) ([]byte, error) {
	var n big.Int
	if _, ok := n.SetString(mod, 16); !ok {
		return nil, fmt.Errorf("invalid RSA modulus")
	}

	pubkey := rsa.PublicKey{N: &n, E: int(exp)}
	out, err := rsa.EncryptPKCS1v15(rand.Reader, &pubkey, data)
	if err != nil {
		return nil, fmt.Errorf("rsa encrypt: %w", err)
	}
	return out, nil
}

// symmetricEncrypt implements Steam's CryptoHelper.SymmetricEncrypt
// convention: a random 16-byte IV is ECB-encrypted under key and that
// encrypted IV is prepended in front of an AES-CBC ciphertext (under the
// plaintext IV) of the PKCS#7-padded plaintext.
func symmetricEncrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("read iv: %w", err)
	}

	encryptedIV := make([]byte, aes.BlockSize)
	block.Encrypt(encryptedIV, iv)

	padded := pkcs7Pad(plaintext, aes.BlockSize)

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	out := make([]byte, 0, len(encryptedIV)+len(ciphertext))
	out = append(out, encryptedIV...)
	out = append(out, ciphertext...)
	return out, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}
