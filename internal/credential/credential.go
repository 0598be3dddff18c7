// Package credential hashes and checks user passwords with bcrypt.
package credential

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"incidentcore/pkg/domain"
)

// DefaultCost is the bcrypt work factor used by Hash.
const DefaultCost = bcrypt.DefaultCost

// Hasher hashes passwords at a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher; cost outside bcrypt's range selects DefaultCost.
func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return Hasher{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", domain.InvalidArgument("hash password", "password is required")
	}
	cost := h.cost
	if cost == 0 {
		cost = DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.InvalidArgument("hash password", "password exceeds 72 bytes")
		}
		return "", err
	}
	return string(b), nil
}

// Compare checks password against hash. Every mismatch, including a
// malformed hash, is reported as domain.ErrInvalidCredentials.
func (h Hasher) Compare(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return invalidCredentials()
	}
	return nil
}

// CompareUnknown is Compare for an account that does not exist. It runs a
// full comparison against a fixed hash at the hasher's cost and always
// reports domain.ErrInvalidCredentials.
func (h Hasher) CompareUnknown(password string) error {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash(), []byte(password))
	return invalidCredentials()
}

const dummyPassword = "incidentcore-unknown-account"

// dummyHashes caches one fixed hash per cost.
var dummyHashes sync.Map

func (h Hasher) dummyHash() []byte {
	cost := h.cost
	if cost == 0 {
		cost = DefaultCost
	}
	if v, ok := dummyHashes.Load(cost); ok {
		return v.([]byte)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil
	}
	v, _ := dummyHashes.LoadOrStore(cost, b)
	return v.([]byte)
}

func invalidCredentials() error {
	return &domain.Error{Kind: domain.KindInvalidArgument, Op: "authenticate", Err: domain.ErrInvalidCredentials}
}
