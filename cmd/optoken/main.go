// Command optoken mints an operator token for local testing of the operator
// API. It signs with the same GATEHOUSE_JWT_* settings as the server.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"gatehouse/internal/operator"
	"gatehouse/internal/platform/config"
)

func main() {
	userID := flag.String("user", "", "operator platform user id")
	name := flag.String("name", "", "operator display name")
	roles := flag.String("roles", "", "comma-separated role ids held by the operator")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "optoken: -user is required")
		os.Exit(2)
	}

	var server config.Server
	if err := env.Parse(&server); err != nil {
		fmt.Fprintf(os.Stderr, "optoken: parse env: %v\n", err)
		os.Exit(1)
	}

	var roleIDs []string
	for r := range strings.SplitSeq(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleIDs = append(roleIDs, r)
		}
	}

	tokens := operator.NewTokenService(server.JWTSigningKey, server.JWTIssuer, server.JWTAudience)
	token, err := tokens.IssueToken(*userID, *name, roleIDs, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "optoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
