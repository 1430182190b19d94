package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
)

// Prints an OPERATOR_ACCOUNTS entry. The password is read from stdin.
func main() {
	var (
		username = flag.String("user", "", "operator username")
		role     = flag.String("role", "operator", "role: operator or admin")
	)
	flag.Parse()

	if strings.TrimSpace(*username) == "" {
		fatal("-user is required")
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fatal("password required on stdin")
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		fatal("password required on stdin")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("%s:%s:%s\n", *username, *role, hash)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
