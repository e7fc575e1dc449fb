// Package password hashes and verifies portal credentials with Argon2id.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Parameters follow the OWASP baseline for Argon2id.
const (
	hashTime    uint32 = 2
	hashMemory  uint32 = 64 * 1024
	hashThreads uint8  = 2
	hashKeyLen  uint32 = 32
	saltLen            = 16
)

type params struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	digest  []byte
}

// Hash derives an Argon2id digest and returns it in PHC string format.
func Hash(plaintext string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	digest := argon2.IDKey([]byte(plaintext), salt, hashTime, hashMemory, hashThreads, hashKeyLen)
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hashMemory,
		hashTime,
		hashThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	)
	return encoded, nil
}

// Verify reports whether plaintext matches a stored PHC-encoded hash. The
// cost parameters come from the stored hash, so old hashes keep verifying
// after the defaults change.
func Verify(plaintext, encoded string) bool {
	p, err := decode(encoded)
	if err != nil {
		return false
	}

	check := argon2.IDKey([]byte(plaintext), p.salt, p.time, p.memory, p.threads, uint32(len(p.digest)))
	return subtle.ConstantTimeCompare(p.digest, check) == 1
}

func decode(encoded string) (*params, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[1] != "argon2id" {
		return nil, errors.New("password: not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return nil, err
	}
	if version != argon2.Version {
		return nil, errors.New("password: unsupported argon2 version")
	}

	p := &params{}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, err
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return nil, err
	}
	if p.digest, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return nil, err
	}
	return p, nil
}
