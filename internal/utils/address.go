package utils

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
)

const Domain = "yggpost"

// CreateAddress returns the mail address of the node with key pk.
func CreateAddress(pk ed25519.PublicKey) string {
	return fmt.Sprintf(
		"%s@%s",
		hex.EncodeToString(pk), Domain,
	)
}

// ParseAddress returns the relay address (the hex node key) of a mail
// address. A bare hex key is accepted too.
func ParseAddress(email string) (string, error) {
	email = strings.Trim(strings.TrimSpace(email), "<>")
	local := email
	if at := strings.LastIndex(email, "@"); at >= 0 {
		if at == 0 {
			return "", fmt.Errorf("invalid email address")
		}
		if email[at+1:] != Domain {
			return "", fmt.Errorf("invalid email domain")
		}
		local = email[:at]
	}
	pk, err := hex.DecodeString(strings.ToLower(local))
	if err != nil {
		return "", fmt.Errorf("hex.DecodeString: %w", err)
	}
	if len(pk) != ed25519.PublicKeySize {
		return "", fmt.Errorf("invalid key length %d", len(pk))
	}
	return hex.EncodeToString(pk), nil
}
