package ports

import "errors"

var ErrInvalidToken = errors.New("invalid or expired token")

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashed string, password string) error
}

// Principal is the authenticated caller carried by a token.
type Principal struct {
	UserID uint64
	Email  string
	Role   string
}

type TokenIssuer interface {
	Issue(principal Principal) (string, error)
	Verify(token string) (Principal, error)
}
