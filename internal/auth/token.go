package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformed is returned when a token does not have the expected
// three-segment shape or a segment is not valid URL-safe base64. Decoding
// never panics on hostile input and never attempts a signature comparison
// against segments that are not there.
var ErrMalformed = errors.New("malformed token")

// Claims is the self-contained session claim set.
type Claims struct {
	Subject  int64  `json:"sub"`
	Username string `json:"username"`
	Expiry   int64  `json:"exp"`
}

// tokenHeader is fixed: every token this server mints is HMAC-SHA256.
const tokenHeader = `{"alg":"HS256","typ":"JWT"}`

var encoding = base64.RawURLEncoding

// encodeToken produces header.payload.signature where the signature is an
// HMAC-SHA256 over the first two base64 segments joined by a dot.
func encodeToken(claims Claims, secret []byte) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	signingInput := encoding.EncodeToString([]byte(tokenHeader)) + "." + encoding.EncodeToString(payload)
	return signingInput + "." + encoding.EncodeToString(sign(signingInput, secret)), nil
}

// decodeToken splits and base64-decodes a token without verifying it. The
// returned signing input is the raw "header.payload" string the signature
// was computed over.
func decodeToken(token string) (signingInput string, payload, signature []byte, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", nil, nil, ErrMalformed
	}

	if _, err := encoding.DecodeString(parts[0]); err != nil {
		return "", nil, nil, ErrMalformed
	}
	payload, err = encoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, nil, ErrMalformed
	}
	signature, err = encoding.DecodeString(parts[2])
	if err != nil || len(signature) == 0 {
		return "", nil, nil, ErrMalformed
	}

	return parts[0] + "." + parts[1], payload, signature, nil
}

func sign(signingInput string, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signingInput))
	return mac.Sum(nil)
}
