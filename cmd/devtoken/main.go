// Command devtoken prints an ID token accepted by IDENTITY_VERIFIER=jwt,
// for signing in locally through /auth/callback?id_token=...
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"orderdesk/internal/config"
	"orderdesk/internal/domain"
	"orderdesk/internal/identity"

	"github.com/joho/godotenv"
)

func main() {
	uid := flag.String("uid", "dev-user", "user id claim")
	email := flag.String("email", "dev@example.com", "email claim")
	name := flag.String("name", "", "display name claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger := log.New(os.Stderr, "[devtoken] ", 0)

	v, err := identity.NewJWTVerifier(identity.JWTConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	if err != nil {
		logger.Fatalf("init verifier: %v", err)
	}
	token, err := v.Issue(domain.AuthenticatedUser{ID: *uid, Email: *email, DisplayName: *name}, *ttl)
	if err != nil {
		logger.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}
