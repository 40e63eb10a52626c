package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
)

func main() {
	hexLen := flag.Int("hex-len", 64, "master key hex length (must be even)")
	flag.Parse()

	if err := validateHexLen(*hexLen); err != nil {
		log.Fatal(err)
	}

	key, err := generateRandomHex(*hexLen)
	if err != nil {
		log.Fatalf("failed to generate master key: %v", err)
	}

	fmt.Println("Generated vault master key")
	fmt.Printf("CREDENTIAL_MASTER_KEY=%s\n", key)
}

func validateHexLen(n int) error {
	if n <= 0 || n%2 != 0 {
		return fmt.Errorf("invalid hex-len: %d (must be positive and even)", n)
	}
	return nil
}

func generateRandomHex(n int) (string, error) {
	b := make([]byte, n/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
