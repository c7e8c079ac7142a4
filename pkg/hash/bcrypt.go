package hash

import "golang.org/x/crypto/bcrypt"

// BcryptHasher is a stateless one-way password hasher.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher builds a hasher with the given cost, falling back to the
// library default when the value is out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash derives a salted hash from the plaintext password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Compare checks the plaintext password against the stored hash.
func (h *BcryptHasher) Compare(hashed, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password))
}
