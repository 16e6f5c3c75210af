package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretSize is the number of random bytes in a generated secret.
const SecretSize = TokenSize256

// LoadOrGenerateSecret reads a secret from file, creating the file with a
// fresh base64url secret when it does not exist. Surrounding whitespace is
// trimmed so the file can be edited by hand.
func LoadOrGenerateSecret(file string) ([]byte, error) {
	file = filepath.Clean(file)

	b, err := os.ReadFile(file)
	switch {
	case err == nil:
		secret := strings.TrimSpace(string(b))
		if secret == "" {
			return nil, fmt.Errorf("cryptox: secret file %s is empty", file)
		}
		return []byte(secret), nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("cryptox: read secret file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
		return nil, fmt.Errorf("cryptox: create secret dir: %w", err)
	}

	raw := make([]byte, SecretSize)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("cryptox: generate secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)

	// O_EXCL so two processes racing on first start cannot both win.
	f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return LoadOrGenerateSecret(file)
		}
		return nil, fmt.Errorf("cryptox: write secret file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(secret); err != nil {
		return nil, fmt.Errorf("cryptox: write secret file: %w", err)
	}
	return []byte(secret), nil
}
