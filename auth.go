package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	seatTokenExpiry  = time.Hour
	bcryptCost       = 12
	helloRateWindow  = 60 * time.Second
	maxHelloAttempts = 10
)

var ErrTooManyAttempts = errors.New("too many attempts, try again later")

// Auth guards the lobby password and issues seat tokens that let a client
// reclaim its id and color after a dropped connection.
type Auth struct {
	passHash  []byte
	jwtSecret []byte

	// Rate limiting for password attempts (IP -> attempts)
	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

type seatClaims struct {
	Color PlayerColor `json:"col"`
	jwt.RegisteredClaims
}

// NewAuth hashes the lobby password, if any, and creates a fresh token
// secret. Tokens do not survive a server restart.
func NewAuth(password string) (*Auth, error) {
	a := &Auth{
		jwtSecret: make([]byte, 32),
		rateMap:   make(map[string]*rateEntry),
	}
	if _, err := rand.Read(a.jwtSecret); err != nil {
		return nil, fmt.Errorf("generate token secret: %w", err)
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash lobby password: %w", err)
		}
		a.passHash = hash
	}
	return a, nil
}

func (a *Auth) HasPassword() bool {
	return len(a.passHash) > 0
}

// CheckPassword verifies a hello password for the connection from ip.
func (a *Auth) CheckPassword(password, ip string) error {
	if !a.HasPassword() {
		return nil
	}
	if !a.checkRate(ip) {
		return ErrTooManyAttempts
	}
	if err := bcrypt.CompareHashAndPassword(a.passHash, []byte(password)); err != nil {
		return ErrBadPassword
	}
	return nil
}

// IssueSeat signs a token binding clientID to color.
func (a *Auth) IssueSeat(clientID uint64, color PlayerColor) (string, error) {
	now := time.Now()
	claims := seatClaims{
		Color: color,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(clientID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(seatTokenExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ValidateSeat returns the client id and color a seat token was issued for.
func (a *Auth) ValidateSeat(tokenStr string) (uint64, PlayerColor, error) {
	claims := &seatClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return 0, 0, err
	}
	if !token.Valid {
		return 0, 0, fmt.Errorf("invalid token")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid token subject: %w", err)
	}
	return id, claims.Color, nil
}

func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(helloRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxHelloAttempts
}
