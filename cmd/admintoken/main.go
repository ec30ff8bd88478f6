// Command admintoken mints a bearer token for the admin routes, signed with the
// same JWT settings the server reads from the environment.
package main

import (
	"flag"
	"fmt"
	"os"

	"mindlink/internal/platform/config"
	"mindlink/internal/platform/jwt"
)

func main() {
	cfg := config.FromEnv()

	subject := flag.String("subject", "", "operator identity recorded as the audit actor")
	ttl := flag.Duration("ttl", cfg.Auth.TokenTTL, "token lifetime")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "admintoken: -subject is required")
		flag.Usage()
		os.Exit(2)
	}

	tokens := jwt.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	token, err := tokens.GenerateAdminToken(*subject, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
