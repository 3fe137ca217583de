package scanner

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category names one class of forbidden tokens.
type Category string

const (
	CategorySystemCommands     Category = "system_commands"
	CategoryDatabaseOperations Category = "database_operations"
	CategoryFileOperations     Category = "file_operations"
	CategoryNetworkOperations  Category = "network_operations"
	CategoryCredentialPatterns Category = "credential_patterns"
)

// Table is the versioned forbidden-token configuration. It lives in a YAML
// document so the token lists can change without redeploying the scanner.
type Table struct {
	Version    int                   `yaml:"version"`
	Categories map[Category][]string `yaml:"categories"`
}

// DefaultTable returns the built-in token lists. Matching is intentionally
// coarse: workflow content may be interpreted downstream as executable
// instructions, so anything shaped like a command, a data-plane operation, or
// a credential is blocked at the boundary.
func DefaultTable() Table {
	return Table{
		Version: 1,
		Categories: map[Category][]string{
			CategorySystemCommands: {
				"sudo", "exec", "eval", "system", "shell", "process",
				"require", "import", "export", "module",
			},
			CategoryDatabaseOperations: {
				"select", "insert", "update", "delete", "drop", "alter",
				"create", "modify", "schema", "database",
			},
			CategoryFileOperations: {
				"readfile", "writefile", "unlink", "fs", "path",
				"file:", "data:", "https:", "ftp:", ".env",
			},
			CategoryNetworkOperations: {
				"fetch", "http", "xhr", "websocket", "socket",
				"request", "response", "network",
			},
			CategoryCredentialPatterns: {
				"password", "token", "secret", "key", "auth",
				"admin", "root", "superuser", "config",
			},
		},
	}
}

// LoadTableFile reads a Table from a YAML file and normalizes its tokens to
// lower case.
func LoadTableFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read pattern table: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("failed to parse pattern table: %w", err)
	}
	if len(t.Categories) == 0 {
		return Table{}, fmt.Errorf("pattern table %s has no categories", path)
	}
	for cat, tokens := range t.Categories {
		lowered := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			tok = strings.TrimSpace(strings.ToLower(tok))
			if tok != "" {
				lowered = append(lowered, tok)
			}
		}
		t.Categories[cat] = lowered
	}
	return t, nil
}
