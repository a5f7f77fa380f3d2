package api

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

// DefaultTokenTTL bounds how long a reconnect token stays valid.
const DefaultTokenTTL = 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid reconnect token")
	ErrTokenExpired = errors.New("reconnect token expired")
)

// TokenClaims is what a reconnect token vouches for.
type TokenClaims struct {
	RoomCode  string
	PlayerID  string
	ExpiresAt time.Time
}

// TokenSigner issues and verifies HMAC-signed reconnect tokens of the form
// base64url("room:player:expiry").hex(hmac).
type TokenSigner struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewTokenSigner uses secret when given, otherwise a random per-process key
// (tokens then do not survive restarts).
func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			log.Printf("⚠️ Failed to generate token key, using fallback")
			key = []byte("snake-arena-default-secret-key32")
		}
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenSigner{secretKey: key, ttl: ttl, now: time.Now}
}

// Issue signs a token for playerID in roomCode.
func (ts *TokenSigner) Issue(roomCode, playerID string) string {
	payload := fmt.Sprintf("%s:%s:%d", roomCode, playerID, ts.now().Add(ts.ttl).Unix())
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + ts.sign(payload)
}

// Verify checks the signature and expiry and returns the claims.
func (ts *TokenSigner) Verify(token string) (TokenClaims, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return TokenClaims{}, fmt.Errorf("%w: format", ErrInvalidToken)
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return TokenClaims{}, fmt.Errorf("%w: encoding", ErrInvalidToken)
	}
	payload := string(raw)
	if !hmac.Equal([]byte(sig), []byte(ts.sign(payload))) {
		return TokenClaims{}, fmt.Errorf("%w: signature", ErrInvalidToken)
	}

	parts := strings.Split(payload, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return TokenClaims{}, fmt.Errorf("%w: payload", ErrInvalidToken)
	}
	expiry, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return TokenClaims{}, fmt.Errorf("%w: expiry", ErrInvalidToken)
	}
	claims := TokenClaims{RoomCode: parts[0], PlayerID: parts[1], ExpiresAt: time.Unix(expiry, 0)}
	if ts.now().After(claims.ExpiresAt) {
		return claims, ErrTokenExpired
	}
	return claims, nil
}

func (ts *TokenSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, ts.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
