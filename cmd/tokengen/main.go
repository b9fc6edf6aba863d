package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tendant/simple-auth/pkg/config"
	"github.com/tendant/simple-auth/pkg/tokengenerator"
)

func main() {
	secret := flag.String("secret", config.GetEnvOrDefault("JWT_SECRET", ""), "Secret key for signing the token (defaults to $JWT_SECRET)")
	issuer := flag.String("issuer", tokengenerator.DefaultIssuer, "Issuer of the token")
	username := flag.String("username", "", "Username placed in the sub claim")
	userID := flag.String("user-id", "", "User id placed in the user_id claim")
	email := flag.String("email", "", "Email claim")
	roles := flag.String("roles", "", "Comma-separated role names")
	expiry := flag.Duration("expiry", tokengenerator.DefaultAccessTokenExpiry, "Token expiry duration (e.g., 30m, 1h, 24h)")
	refresh := flag.Bool("refresh", false, "Issue a refresh token instead of an access token")
	outputFormat := flag.String("format", "compact", "Output format: compact, full, or debug")
	flag.Parse()

	if *username == "" {
		fmt.Fprintln(os.Stderr, "Error: -username is required")
		os.Exit(1)
	}
	if len(*secret) < tokengenerator.MinSecretLength {
		fmt.Fprintf(os.Stderr, "Error: secret must be at least %d bytes, otherwise the token cannot be verified by a server\n", tokengenerator.MinSecretLength)
		os.Exit(1)
	}

	tokens := tokengenerator.NewJwtService(*secret,
		tokengenerator.WithIssuer(*issuer),
		tokengenerator.WithAccessTokenExpiry(*expiry),
		tokengenerator.WithRefreshTokenExpiry(*expiry),
	)
	principal := tokengenerator.Principal{
		UserID:   *userID,
		Username: *username,
		Email:    *email,
		Roles:    config.SplitList(*roles),
	}

	issue := tokens.IssueAccessToken
	if *refresh {
		issue = tokens.IssueRefreshToken
	}
	token, err := issue(principal)
	if err != nil {
		slog.Error("Failed to generate token", "err", err)
		fmt.Fprintf(os.Stderr, "Error: Failed to generate token: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "compact":
		fmt.Println(token.Value)
	case "full":
		fmt.Printf("Token: %s\nExpires: %s\n", token.Value, token.ExpiresAt.Format(time.RFC3339))
	case "debug":
		claims, err := tokens.ParseClaims(token.Value)
		if err != nil {
			slog.Error("Failed to parse generated token", "err", err)
			fmt.Fprintf(os.Stderr, "Error: Failed to parse generated token: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("=== Token Information ===\n")
		fmt.Printf("Token: %s\n\n", token.Value)
		fmt.Printf("=== Token Claims ===\n")
		claimsJSON, _ := json.MarshalIndent(claims, "", "  ")
		fmt.Printf("%s\n\n", claimsJSON)
		fmt.Printf("Expires: %s\n", token.ExpiresAt.Format(time.RFC3339))
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown output format: %s\n", *outputFormat)
		os.Exit(1)
	}
}
