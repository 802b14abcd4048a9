// Package secrets resolves credentials from files or inline configuration.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned when a required secret has neither a file nor a value.
var ErrNotConfigured = errors.New("secret is not configured")

// Source describes where a secret comes from. File wins over Value.
type Source struct {
	Name  string
	Value string
	File  string
}

// Load returns the trimmed secret of src.
func Load(src Source) (string, error) {
	secret, err := resolve(src)
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", fmt.Errorf("%s: %w", src.name(), ErrNotConfigured)
	}
	return secret, nil
}

// LoadOptional is Load for secrets that may be absent. It still fails on an
// unreadable or empty file.
func LoadOptional(src Source) (string, error) {
	return resolve(src)
}

func resolve(src Source) (string, error) {
	file := strings.TrimSpace(src.File)
	if file == "" {
		return strings.TrimSpace(src.Value), nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read %s from %q: %w", src.name(), file, err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("%s file %q is empty", src.name(), file)
	}
	return secret, nil
}

func (s Source) name() string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return "secret"
}
