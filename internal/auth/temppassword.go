package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// TempPasswordIssuer produces temporary credentials for new accounts and
// administrative password resets. Every issued value must satisfy the
// password policy (min length, one uppercase, one digit).
type TempPasswordIssuer interface {
	Issue() (string, error)
}

// FixedIssuer always returns the same shared constant. Every account it
// touches gets a well-known password, so it must not be used outside
// test or demo deployments.
type FixedIssuer struct {
	Password string
}

func (f FixedIssuer) Issue() (string, error) {
	if f.Password == "" {
		return "", fmt.Errorf("fixed temp password not configured")
	}
	return f.Password, nil
}

const (
	tempUpper  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	tempLower  = "abcdefghijkmnopqrstuvwxyz"
	tempDigits = "23456789"
	tempAll    = tempUpper + tempLower + tempDigits
)

// RandomIssuer generates a fresh credential per issuance from crypto/rand.
// The first two positions are drawn from the uppercase and digit classes
// so the result always passes the strength check.
type RandomIssuer struct {
	Length int
}

func (g RandomIssuer) Issue() (string, error) {
	n := g.Length
	if n < 12 {
		n = 16
	}
	buf := make([]byte, n)
	var err error
	if buf[0], err = pick(tempUpper); err != nil {
		return "", err
	}
	if buf[1], err = pick(tempDigits); err != nil {
		return "", err
	}
	for i := 2; i < n; i++ {
		if buf[i], err = pick(tempAll); err != nil {
			return "", err
		}
	}
	return string(buf), nil
}

func pick(set string) (byte, error) {
	i, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("temp password entropy: %w", err)
	}
	return set[i.Int64()], nil
}
