package chat

import (
	"encoding/json"
	"log/slog"
	"os"
)

// Credentials is the static username to password table, loaded once at
// startup and read-only afterwards. Passwords are compared with plain
// string equality; there is no hashing and no rate limiting, a known gap
// inherited from the deployment this serves.
type Credentials map[string]string

func DefaultCredentials() Credentials {
	return Credentials{
		"admin":  "password123",
		"friend": "password123",
		"guest":  "password123",
	}
}

// LoadCredentials reads a JSON object of username to password pairs from
// path. An empty path, or a file that cannot be read or parsed, falls
// back to the built-in table.
func LoadCredentials(log *slog.Logger, path string) Credentials {
	if path == "" {
		return DefaultCredentials()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("reading credentials failed, using defaults", "path", path, "error", err)
		return DefaultCredentials()
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil || len(creds) == 0 {
		log.Error("parsing credentials failed, using defaults", "path", path, "error", err)
		return DefaultCredentials()
	}
	return creds
}

func (c Credentials) Check(username, password string) bool {
	stored, ok := c[username]
	return ok && stored == password
}
