package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/api/middleware"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/config"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
)

func main() {
	cfg := config.Load()

	uid := flag.String("uid", "", "User id (token subject)")
	name := flag.String("name", "", "Display name")
	email := flag.String("email", "", "Email address")
	avatar := flag.String("avatar", "", "Avatar URL")
	provider := flag.String("provider", "password", "Sign-in provider")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	secret := flag.String("secret", cfg.TokenSecret, "Signing secret (defaults to the server's TOKEN_SECRET)")
	flag.Parse()

	if *uid == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "Usage: token -uid <id> [-name <name>] [-email <email>] [-avatar <url>] [-ttl 24h] [-secret <secret>]")
		fmt.Fprintln(os.Stderr, "  Reads the secret from TOKEN_SECRET if -secret is not specified")
		os.Exit(1)
	}

	identity := models.Identity{ID: *uid, DisplayName: *name, Email: *email, AvatarURL: *avatar}
	token, err := middleware.SignToken(*secret, identity, *provider, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "ws://localhost:%s/ws?token=%s\n", cfg.Port, token)
}
