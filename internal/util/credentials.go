package util

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptCredentials fills in missing Emporia credentials interactively.
// Values already present (from env vars or a .env file) are returned
// as-is; empty ones are read from in, the password through readPassword
// so it is not echoed back.
func PromptCredentials(username, password string, in io.Reader, out io.Writer, readPassword func() (string, error)) (string, string, error) {
	reader := bufio.NewReader(in)

	if username == "" {
		fmt.Fprint(out, "Emporia account email: ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return "", "", fmt.Errorf("username is required")
	}

	if password == "" {
		fmt.Fprint(out, "Password: ")
		value, err := readPassword()
		fmt.Fprintln(out)
		if err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimSpace(value)
	}
	if password == "" {
		return "", "", fmt.Errorf("password is required")
	}

	return username, password, nil
}
