package models

import "time"

// PaymentNetwork identifies the payment system a card belongs to.
type PaymentNetwork string

const (
	NetworkMIR        PaymentNetwork = "MIR"
	NetworkVisa       PaymentNetwork = "VISA"
	NetworkMastercard PaymentNetwork = "MASTERCARD"
	NetworkMaestro    PaymentNetwork = "MAESTRO"
)

// networkByPrefix maps the leading digit of a card number to its network.
var networkByPrefix = map[byte]PaymentNetwork{
	'2': NetworkMIR,
	'4': NetworkVisa,
	'5': NetworkMastercard,
	'6': NetworkMaestro,
}

// NetworkForPrefix returns the payment network encoded by the leading
// digit of a card number.
func NetworkForPrefix(prefix byte) (PaymentNetwork, bool) {
	network, ok := networkByPrefix[prefix]
	return network, ok
}

// Prefix returns the leading digit used for card numbers of this network.
func (n PaymentNetwork) Prefix() (byte, bool) {
	for prefix, network := range networkByPrefix {
		if network == n {
			return prefix, true
		}
	}
	return 0, false
}

// Valid reports whether n is one of the known payment networks.
func (n PaymentNetwork) Valid() bool {
	_, ok := n.Prefix()
	return ok
}

// Card represents a virtual payment card. Balance is stored in minor
// units and is mutated only through atomic adjustments.
type Card struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Number    string         `json:"number"`
	Network   PaymentNetwork `json:"network"`
	CVC       string         `json:"-"` // Not serialized
	ExpiresAt time.Time      `json:"expires_at"`
	Balance   int64          `json:"balance"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
