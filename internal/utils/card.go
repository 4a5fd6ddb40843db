package utils

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Dan9191/card-service/internal/models"
)

// CardNumberLength is the fixed length of generated card numbers.
const CardNumberLength = 16

const cardValidityYears = 3

// networkPrefixes lists the prefixes a fresh card may be issued under.
var networkPrefixes = []byte{'2', '4', '5', '6'}

// Generator produces card numbers, CVC codes and expiry dates. The
// entropy source and clock are injectable so tests can supply fixed
// sequences.
type Generator struct {
	rand io.Reader
	now  func() time.Time
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{rand: rand.Reader, now: time.Now}
}

// NewGeneratorWith creates a generator with an explicit entropy source
// and clock. Nil arguments fall back to the defaults.
func NewGeneratorWith(r io.Reader, now func() time.Time) *Generator {
	if r == nil {
		r = rand.Reader
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{rand: r, now: now}
}

// Fresh generates a card number under a uniformly chosen network prefix
// and returns the network implied by that prefix. Number and network
// are consistent by construction.
func (g *Generator) Fresh() (string, models.PaymentNetwork, error) {
	b := make([]byte, 1)
	if _, err := io.ReadFull(g.rand, b); err != nil {
		return "", "", fmt.Errorf("failed to pick network prefix: %w", err)
	}
	prefix := networkPrefixes[int(b[0])%len(networkPrefixes)]
	network, _ := models.NetworkForPrefix(prefix)

	number, err := g.withPrefix(prefix)
	if err != nil {
		return "", "", err
	}
	return number, network, nil
}

// ForNetwork generates a card number under the prefix of the given
// network.
func (g *Generator) ForNetwork(network models.PaymentNetwork) (string, error) {
	prefix, ok := network.Prefix()
	if !ok {
		return "", fmt.Errorf("unknown payment network %q", network)
	}
	return g.withPrefix(prefix)
}

// Regenerate produces a fresh card number keeping the prefix, and
// therefore the network, of the old one.
func (g *Generator) Regenerate(oldNumber string) (string, error) {
	if len(oldNumber) != CardNumberLength {
		return "", fmt.Errorf("invalid card number length: %d", len(oldNumber))
	}
	return g.withPrefix(oldNumber[0])
}

func (g *Generator) withPrefix(prefix byte) (string, error) {
	digits := make([]byte, CardNumberLength-1)
	if _, err := io.ReadFull(g.rand, digits); err != nil {
		return "", fmt.Errorf("failed to generate random digits: %w", err)
	}

	var builder strings.Builder
	builder.WriteByte(prefix)
	for _, b := range digits {
		builder.WriteByte(b%10 + '0')
	}
	return builder.String(), nil
}

// CVC generates a 3-digit card verification code.
func (g *Generator) CVC() (string, error) {
	b := make([]byte, 3)
	if _, err := io.ReadFull(g.rand, b); err != nil {
		return "", fmt.Errorf("failed to generate cvc: %w", err)
	}
	return fmt.Sprintf("%d%d%d", b[0]%10, b[1]%10, b[2]%10), nil
}

// ExpiryDate returns the validity timestamp for a newly generated
// number. Cards are valid for 3 years.
func (g *Generator) ExpiryDate() time.Time {
	return g.now().AddDate(cardValidityYears, 0, 0)
}

// MaskNumber hides the middle digits of a card number for logs and
// notifications.
func MaskNumber(number string) string {
	if len(number) < 8 {
		return "****"
	}
	return number[:4] + strings.Repeat("*", len(number)-8) + number[len(number)-4:]
}
