package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewID returns a random UUID string used as a primary key.
func NewID() string {
	return uuid.NewString()
}

// GenerateOrderNumber returns a human-readable order number such as
// CR-261018-7KX2QD. The random suffix avoids ambiguous characters.
func GenerateOrderNumber(now time.Time) string {
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(orderNumberAlphabet)))
	for i := range suffix {
		n, _ := rand.Int(rand.Reader, max)
		suffix[i] = orderNumberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("CR-%s-%s", now.Format("060102"), suffix)
}

// GenerateTestTransactionID mirrors the id the test checkout page receives.
func GenerateTestTransactionID(now time.Time) string {
	return fmt.Sprintf("test-%d", now.UnixMilli())
}

// FallbackExternalID is used when a completion signal carries no provider id.
func FallbackExternalID(orderID string) string {
	return "callback-" + orderID
}
