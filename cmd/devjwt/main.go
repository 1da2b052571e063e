// Command devjwt mints HS256 access tokens for local testing against an API
// running with AUTH_MODE=jwt. It reads the same JWT_* environment as the server.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kinship-labs/parent-match-api/internal/platform/auth/jwtverifier"
	"github.com/kinship-labs/parent-match-api/internal/platform/config"
)

func main() {
	sub := flag.String("sub", "", "subject (account id) to put in the token")
	ttl := flag.Duration("ttl", 0, "token lifetime; defaults to JWT_TTL")
	flag.Parse()

	cfg, err := config.LoadFrom(func(key string) string {
		if key == "AUTH_MODE" {
			return config.AuthModeJWT
		}
		return os.Getenv(key)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "devjwt: %v\n", err)
		os.Exit(1)
	}
	if *sub == "" {
		fmt.Fprintln(os.Stderr, "devjwt: -sub is required")
		os.Exit(2)
	}
	lifetime := cfg.JWT.TTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, exp, err := jwtverifier.NewIssuer(cfg.JWT, nil).IssueFor(*sub, lifetime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devjwt: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))
}
