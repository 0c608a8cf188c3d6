package main

import (
	"fmt"
	"os"

	"github.com/careloop/patient-api/pkg/security"
)

// hashpw prints the bcrypt hash for a password, for seeding staff
// accounts into the users table.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hashpw <password>")
		os.Exit(1)
	}

	hash, err := security.HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
