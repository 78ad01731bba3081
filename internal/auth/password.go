package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword derives a bcrypt hash of password at the given cost. A
// cost outside bcrypt's supported range falls back to the default cost
// rather than failing account creation.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword reports whether plain matches the stored hash; a nil
// error means the credentials are valid.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
