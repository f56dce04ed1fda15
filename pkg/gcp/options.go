package gcp

import (
	"strings"

	"google.golang.org/api/option"

	"github.com/angelmondragon/settlement-backend/pkg/config"
)

// ClientOptions returns credential options for Google clients. Inline JSON wins
// over a credentials file; with neither, Application Default Credentials apply.
func ClientOptions(cfg config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))}
	case strings.TrimSpace(cfg.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(cfg.ApplicationCredentials)}
	default:
		return nil
	}
}
