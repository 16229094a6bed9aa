// Package telegram verifies Telegram WebApp launch data so a player can join
// under their Telegram identity.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformed = errors.New("telegram: malformed init data")
	ErrSignature = errors.New("telegram: bad init data signature")
	ErrExpired   = errors.New("telegram: init data expired")
)

// допустимый сдвиг часов клиента
const clockSkew = 5 * time.Minute

type WebAppUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// PlayerID is the session player id for a Telegram user.
func (u *WebAppUser) PlayerID() string {
	return "tg:" + strconv.FormatInt(u.ID, 10)
}

func (u *WebAppUser) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.Username != "" {
		return "@" + u.Username
	}
	return name
}

// dataCheckString builds the sorted key=value lines the hash covers.
func dataCheckString(values url.Values) string {
	lines := make([]string, 0, len(values))
	for k, v := range values {
		if k == "hash" {
			continue
		}
		lines = append(lines, k+"="+strings.Join(v, ""))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func sign(dataCheck, botToken string) []byte {
	key := hmac.New(sha256.New, []byte("WebAppData"))
	key.Write([]byte(botToken))
	h := hmac.New(sha256.New, key.Sum(nil))
	h.Write([]byte(dataCheck))
	return h.Sum(nil)
}

// VerifyInitData checks the HMAC of initData against botToken, rejects data
// older than maxAge and returns the user it carries.
func VerifyInitData(initData, botToken string, maxAge time.Duration, now time.Time) (*WebAppUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrMalformed
	}

	provided, err := hex.DecodeString(values.Get("hash"))
	if err != nil || len(provided) == 0 {
		return nil, ErrMalformed
	}
	if !hmac.Equal(sign(dataCheckString(values), botToken), provided) {
		return nil, ErrSignature
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, ErrMalformed
	}
	issued := time.Unix(authDate, 0)
	if now.Sub(issued) > maxAge || issued.Sub(now) > clockSkew {
		return nil, ErrExpired
	}

	var user WebAppUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID == 0 {
		return nil, ErrMalformed
	}
	return &user, nil
}
