package session

import (
	"crypto/rand"
	"math/big"
)

const (
	adHocIDLength   = 9
	adHocIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	maxIDAttempts   = 16
)

// newAdHocID returns a random base36 token for sessions without a course
func newAdHocID() (string, error) {
	max := big.NewInt(int64(len(adHocIDAlphabet)))
	buf := make([]byte, adHocIDLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = adHocIDAlphabet[n.Int64()]
	}
	return string(buf), nil
}
