// opstoken mints operator credentials for the cron and cache routes.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"insightflow/api/utils"
)

func main() {
	var subject string
	var ttl time.Duration
	var hashKey string
	flag.StringVar(&subject, "subject", "scheduler", "token subject (who the operator is)")
	flag.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	flag.StringVar(&hashKey, "hash-key", "", "print the bcrypt hash of this API key for ADMIN_API_KEY_HASH instead of minting a token")
	flag.Parse()

	_ = godotenv.Load()

	if hashKey != "" {
		hash, err := utils.HashAPIKey(hashKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET_KEY"))
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET_KEY is not set")
		os.Exit(1)
	}
	token, err := utils.GenerateJWT([]byte(secret), subject, utils.RoleAdmin, ttl, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
