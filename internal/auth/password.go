package auth

import "golang.org/x/crypto/bcrypt"

// dummyHash is compared against when the user does not exist so a failed
// login costs the same whether or not the username is known.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("todo-tracker-dummy-password"), bcrypt.DefaultCost)

func GeneratePasswordHash(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hashedPassword), nil
}

func ComparePasswordHash(hashedPassword []byte, password string) error {
	return bcrypt.CompareHashAndPassword(hashedPassword, []byte(password))
}

// CompareDummyHash burns one bcrypt comparison and always fails.
func CompareDummyHash(password string) error {
	if err := bcrypt.CompareHashAndPassword(dummyHash, []byte(password)); err != nil {
		return err
	}
	return bcrypt.ErrMismatchedHashAndPassword
}
