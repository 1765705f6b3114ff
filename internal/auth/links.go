package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeUID encodes a credential id for use as a link path segment.
func EncodeUID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeUID reverses EncodeUID. Padded input is accepted as well.
func DecodeUID(uid string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(uid, "="))
	if err != nil {
		return "", fmt.Errorf("failed to decode uid: %w", err)
	}
	return string(raw), nil
}

func verificationLink(siteURL, id, token string) string {
	return fmt.Sprintf("%s/verify-email/%s/%s", strings.TrimRight(siteURL, "/"), EncodeUID(id), token)
}

func resetLink(siteURL, id, token string) string {
	return fmt.Sprintf("%s/password-reset-confirm/%s/%s", strings.TrimRight(siteURL, "/"), EncodeUID(id), token)
}
