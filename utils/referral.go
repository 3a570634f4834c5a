package utils

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
)

// ReferralType represents the type of entity for which a referral code is being generated
type ReferralType string

const (
	ResellerType ReferralType = "RES"
)

// GenerateReferralCode generates a unique referral code for the specified entity type
// Format: {TYPE}-{RANDOM} where RANDOM is 6 alphanumeric characters
// Example: RES-ABC123
func GenerateReferralCode(entityType ReferralType) (string, error) {
	// 4 random bytes give 7 base32 characters, we keep 6
	randomBytes := make([]byte, 4)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return "", err
	}

	randomStr := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes)
	randomStr = strings.ToUpper(randomStr[:6])

	return string(entityType) + "-" + randomStr, nil
}

// GenerateResellerReferralCode generates a referral code for a reseller
func GenerateResellerReferralCode() (string, error) {
	return GenerateReferralCode(ResellerType)
}

// NormalizeReferralCode trims and upper-cases a code typed by a user
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
