package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Prints a random secret suitable for TOKEN_SECRET.
func main() {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic(err)
	}

	fmt.Printf("TOKEN_SECRET=%s\n", base64.StdEncoding.EncodeToString(secret))
}
