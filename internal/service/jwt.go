package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var jwtSecret []byte

// tokenTTL outlives any realistic session.
const tokenTTL = 24 * time.Hour

// InitJWT sets the signing secret. It panics on an empty secret.
func InitJWT(secret string) {
	if secret == "" {
		panic("JWT secret is empty")
	}
	jwtSecret = []byte(secret)
}

// PlayerClaims bind a token to one player in one game.
type PlayerClaims struct {
	GameID   string
	PlayerID string
}

func GenerateJWT(gameID, playerID string) (string, error) {
	if len(jwtSecret) == 0 {
		return "", errors.New("jwt not initialized")
	}
	now := time.Now().Unix()
	claims := jwt.MapClaims{
		"game_id":   gameID,
		"player_id": playerID,
		"exp":       time.Now().Add(tokenTTL).Unix(),
		"iat":       now,
		"nbf":       now,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ParseJWT(tokenString string) (PlayerClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})

	if err != nil || !token.Valid {
		return PlayerClaims{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return PlayerClaims{}, errors.New("invalid claims")
	}

	gameID, _ := claims["game_id"].(string)
	playerID, _ := claims["player_id"].(string)
	if gameID == "" || playerID == "" {
		return PlayerClaims{}, errors.New("player claims not found")
	}

	return PlayerClaims{GameID: gameID, PlayerID: playerID}, nil
}
