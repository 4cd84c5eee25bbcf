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

// MinLength is the shortest password accepted by [Hasher.Hash], in bytes.
const MinLength = 8

var (
	ErrTooShort           = errors.New("password: too short")
	ErrInvalidHash        = errors.New("password: invalid hash")
	ErrIncompatibleParams = errors.New("password: incompatible hash parameters")
)

var b64 = base64.RawStdEncoding

// Params are the Argon2id cost parameters.
type Params struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// DefaultParams follow the RFC 9106 second recommended option.
func DefaultParams() Params {
	return Params{Memory: 64 * 1024, Time: 3, Threads: 2, SaltLen: 16, KeyLen: 32}
}

// FastParams are the cheapest accepted parameters. Use them for tests and demos only.
func FastParams() Params {
	return Params{Memory: 8 * 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 16}
}

func (p Params) validate() error {
	switch {
	case p.Memory < 8*1024:
		return fmt.Errorf("%w: memory below 8 MiB", ErrIncompatibleParams)
	case p.Time < 1:
		return fmt.Errorf("%w: time below 1", ErrIncompatibleParams)
	case p.Threads < 1:
		return fmt.Errorf("%w: threads below 1", ErrIncompatibleParams)
	case p.SaltLen < 16:
		return fmt.Errorf("%w: salt shorter than 16 bytes", ErrIncompatibleParams)
	case p.KeyLen < 16:
		return fmt.Errorf("%w: key shorter than 16 bytes", ErrIncompatibleParams)
	}
	return nil
}

// Hasher is safe for concurrent use.
type Hasher struct {
	params Params
}

func NewHasher(p Params) (*Hasher, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Hasher{params: p}, nil
}

// Hash derives a PHC-encoded hash with a fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < MinLength {
		return "", ErrTooShort
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify reports whether password matches encoded. The parameters stored in
// encoded are used, not the hasher's.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	p, salt, key, err := decode(encoded)
	if err != nil {
		return false, err
	}
	other := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker parameters.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	p, _, _, err := decode(encoded)
	if err != nil {
		return false, err
	}
	return p.Memory < h.params.Memory ||
		p.Time < h.params.Time ||
		p.Threads < h.params.Threads ||
		p.KeyLen != h.params.KeyLen, nil
}

func decode(encoded string) (Params, []byte, []byte, error) {
	var p Params

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return p, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: version %d", ErrIncompatibleParams, version)
	}

	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, ErrInvalidHash
	}

	salt, err := b64.DecodeString(fields[4])
	if err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(key))

	if err := p.validate(); err != nil {
		return p, nil, nil, err
	}
	return p, salt, key, nil
}
