package proof

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

var ErrInvalidPayload = errors.New("invalid proof payload")

// Claims is the content embedded in a QR payload.
type Claims struct {
	ProofID      uuid.UUID `json:"pid"`
	RedemptionID uuid.UUID `json:"rid"`
	RewardID     string    `json:"rwd"`
	StoreID      string    `json:"sid"`
	CustomerID   string    `json:"cid"`
	Points       int64     `json:"pts"`
	IssuedAt     int64     `json:"iat"`
	ExpiresAt    int64     `json:"exp"`
}

// Codec signs QR payloads with a per-store key derived from the master secret.
type Codec struct {
	secret []byte
}

// NewCodec builds Codec for the master secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode serializes claims as base64url(json) "." base64url(mac).
func (c *Codec) Encode(claims Claims) (string, error) {
	body, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(body)
	sig, err := c.sign(claims.StoreID, encoded)
	if err != nil {
		return "", err
	}
	return encoded + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Decode verifies the signature and returns embedded claims.
func (c *Codec) Decode(payload string) (Claims, error) {
	var claims Claims
	parts := strings.Split(strings.TrimSpace(payload), ".")
	if len(parts) != 2 {
		return claims, ErrInvalidPayload
	}
	body, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return claims, ErrInvalidPayload
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return claims, ErrInvalidPayload
	}
	if err := json.Unmarshal(body, &claims); err != nil {
		return claims, ErrInvalidPayload
	}

	expected, err := c.sign(claims.StoreID, parts[0])
	if err != nil {
		return claims, err
	}
	if !hmac.Equal(expected, sig) {
		return Claims{}, ErrInvalidPayload
	}
	if claims.ProofID == uuid.Nil {
		return Claims{}, ErrInvalidPayload
	}
	return claims, nil
}

func (c *Codec) sign(storeID, payload string) ([]byte, error) {
	key, err := c.storeKey(storeID)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return mac.Sum(nil), nil
}

func (c *Codec) storeKey(storeID string) ([]byte, error) {
	key := make([]byte, sha256.Size)
	reader := hkdf.New(sha256.New, c.secret, nil, []byte("redemption-proof:"+storeID))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive store key: %w", err)
	}
	return key, nil
}
