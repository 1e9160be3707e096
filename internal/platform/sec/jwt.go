// Copyright (c) 2026 Inkwell. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides session tokens and authorization for the content core.
//
// # Architecture
//
// This package isolates security-sensitive code (JWT signing and
// verification, authKey checks) from the domain logic. It acts as an
// Infrastructure service injected into the Application layer.
package sec

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload embedded inside a session JWT.
//
// # Why custom claims?
//
// By embedding the subject, the writable flag, and the authorized authKeys
// directly inside the JWT, the middleware can reconstruct the full [Session]
// WITHOUT querying the database on every single API request.
type SessionClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	ReadOnly bool     `json:"ro"`
	AuthKeys []string `json:"ak"`
}

// Session carries the caller's identity, read-only vs. read-write mode, and
// the authKey partitions the caller may act on. It is passed through every
// core call via the request context.
type Session struct {
	// Subject identifies the principal (user or service account).
	Subject string

	// ReadOnly marks sessions that must not perform mutations.
	ReadOnly bool

	// AuthKeys lists the authorization partitions the session may access.
	// A single "*" entry grants access to every partition.
	AuthKeys []string
}

// CanAccess reports whether the session may act on entities in the given
// authKey partition.
func (s *Session) CanAccess(authKey string) bool {
	for _, key := range s.AuthKeys {
		if key == "*" || key == authKey {
			return true
		}
	}
	return false
}

// TokenService handles generation and verification of session JWTs using RS256.
type TokenService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
}

// NewTokenService creates a new TokenService.
// It reads RSA keys from the provided filesystem paths.
func NewTokenService(privateKeyPath, publicKeyPath, issuer string) (*TokenService, error) {
	privateKeyData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read private key from %s: %w", privateKeyPath, err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse private key: %w", err)
	}

	publicKeyData, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read public key from %s: %w", publicKeyPath, err)
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse public key: %w", err)
	}

	return &TokenService{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
	}, nil
}

// GenerateSessionToken creates a new JWT for a principal.
func (service *TokenService) GenerateSessionToken(subject string, readOnly bool, authKeys []string, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		ReadOnly: readOnly,
		AuthKeys: authKeys,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(service.privateKey)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// VerifyToken checks the signature and validity of a JWT string and
// reconstructs the caller's [Session].
func (service *TokenService) VerifyToken(tokenString string) (*Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.publicKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("sec: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid token claims")
	}

	return &Session{
		Subject:  claims.Subject,
		ReadOnly: claims.ReadOnly,
		AuthKeys: claims.AuthKeys,
	}, nil
}
