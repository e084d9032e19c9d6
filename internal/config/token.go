package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Token sources reported by ResolveTokenSource.
const (
	TokenSourceFlag        = "flag"
	TokenSourceEnvironment = "environment"
	TokenSourceFile        = "token-file"
)

// ErrEmptyToken is returned when a token file exists but holds nothing.
var ErrEmptyToken = errors.New("token file is empty")

// ResolveToken returns the auth token from the highest-priority source:
//  1. the explicit value (e.g. --token)
//  2. LOCKER_TOKEN
//  3. the token file written by 'locker login'
//
// Returns "" when nobody is logged in.
func ResolveToken(explicit, tokenPath string) string {
	token, _ := ResolveTokenSource(explicit, tokenPath)
	return token
}

// ResolveTokenSource is ResolveToken that also reports where the token came from.
func ResolveTokenSource(explicit, tokenPath string) (string, string) {
	if explicit != "" {
		return explicit, TokenSourceFlag
	}
	if env := os.Getenv("LOCKER_TOKEN"); env != "" {
		return env, TokenSourceEnvironment
	}
	if tokenPath == "" {
		tokenPath = DefaultTokenPath()
	}
	if tokenPath != "" {
		if token, err := ReadTokenFile(tokenPath); err == nil {
			return token, TokenSourceFile
		}
	}
	return "", ""
}

// ReadTokenFile reads a token file, warning on stderr when it is readable
// by group or others.
func ReadTokenFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat token file: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		fmt.Fprintf(os.Stderr, "Warning: Token file %s has insecure permissions %04o. Consider using 'chmod 600 %s'\n", path, mode, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

// WriteTokenFile stores a token with 0600 permissions.
func WriteTokenFile(path, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("cannot write empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// RemoveTokenFile deletes the token file. A missing file is not an error.
func RemoveTokenFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
