package identity

import (
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned by Hash for passwords over MaxPasswordBytes.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// Hasher hashes and verifies passwords. The account service never sees the
// algorithm, only this interface.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, providedPassword string) error
	// VerifyDummy burns one comparison without a stored hash.
	VerifyDummy(providedPassword string)
}

type bcryptHasher struct {
	cost int
	// compared against when the user does not exist so that an unknown
	// username costs the same as a wrong password
	dummyHash []byte
}

// NewBcryptHasher returns a Hasher backed by bcrypt.
// A cost outside bcrypt's accepted range falls back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) Hasher {
	// higher cost means more security but also more processing time
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// only fails for an out-of-range cost, which was ruled out above
	dummy, _ := bcrypt.GenerateFromPassword([]byte("dummy-password"), cost)
	return &bcryptHasher{cost: cost, dummyHash: dummy}
}

// Hash creates a bcrypt hash from the given plaintext password.
func (h *bcryptHasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// Verify checks if the provided plaintext password matches the stored bcrypt hash.
func (h *bcryptHasher) Verify(hashedPassword, providedPassword string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(providedPassword))
}

func (h *bcryptHasher) VerifyDummy(providedPassword string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(providedPassword))
}
