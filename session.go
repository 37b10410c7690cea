package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const reconnectTokenTTL = 2 * time.Hour

// SessionTokens issues and validates the reconnect tokens that let a dropped
// player prove ownership of a seat during the grace window.
type SessionTokens struct {
	secret []byte
}

// NewSessionTokens loads the signing secret from the settings table, or
// generates and persists a fresh one.
func NewSessionTokens(db *DB) *SessionTokens {
	return &SessionTokens{secret: loadOrCreateSecret(db)}
}

func loadOrCreateSecret(db *DB) []byte {
	if db != nil {
		if h := db.GetSetting("token_secret"); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate token secret: " + err.Error())
	}
	if db != nil {
		if err := db.SetSetting("token_secret", hex.EncodeToString(secret)); err != nil {
			log.Warn().Err(err).Msg("could not persist token secret, tokens won't survive a restart")
		}
	}
	return secret
}

// Issue signs a token binding the player to their seat in the match
func (st *SessionTokens) Issue(matchID, playerID string) (string, error) {
	claims := jwt.MapClaims{
		"mid": matchID,
		"pid": playerID,
		"exp": time.Now().Add(reconnectTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(st.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate returns the (matchID, playerID) a token was issued for
func (st *SessionTokens) Validate(tokenStr string) (string, string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return st.secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", fmt.Errorf("invalid claims")
	}
	mid, _ := claims["mid"].(string)
	pid, _ := claims["pid"].(string)
	if mid == "" || pid == "" {
		return "", "", fmt.Errorf("invalid claims")
	}
	return mid, pid, nil
}
