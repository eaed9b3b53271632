// Command hash-password prints a PBKDF2 hash suitable for
// MOVIES_API_ADMIN_PASSWORD_HASH.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"movies-api/internal/auth"
)

const minPasswordLength = 8

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	password := fs.String("password", "", "password to hash; read from stdin when omitted")
	verify := fs.String("verify", "", "existing hash to check the password against instead of hashing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret := *password
	if secret == "" {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		secret = strings.TrimRight(line, "\r\n")
	}

	if *verify != "" {
		if err := auth.VerifyPassword(strings.TrimSpace(*verify), secret); err != nil {
			return fmt.Errorf("password does not match: %w", err)
		}
		fmt.Fprintln(stdout, "ok")
		return nil
	}

	if len(secret) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	hash, err := auth.HashPassword(secret)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, hash)
	return nil
}
