// Package config loads the credential bundle and run profiles.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/subosito/gotenv"
)

// Default artifact locations when the bundle does not name them.
const (
	DefaultReportDir    = "reports"
	DefaultArtifactsDir = "artifacts"
)

// Credentials is the bundle resolved from the environment file. It is
// immutable once loaded; a missing required key is a configuration error
// surfaced before any request is issued.
type Credentials struct {
	Auth0Domain       string
	Auth0TokenURL     string
	Auth0ClientID     string
	Auth0ClientSecret string

	M2MClientID     string
	M2MClientSecret string

	// AuthToken is an optional pre-provisioned bearer token. When set it
	// bypasses the client-credentials flow.
	AuthToken string

	TargetBaseURL string
	TargetAPIURL  string

	ReportDir       string
	ArtifactsDir    string
	PackageIndexURL string
}

var requiredKeys = []string{
	"AUTH0_DOMAIN",
	"AUTH0_CLIENT_ID",
	"AUTH0_CLIENT_SECRET",
	"M2M_CLIENT_ID",
	"M2M_CLIENT_SECRET",
	"TARGET_BASE_URL",
	"TARGET_API_URL",
}

// MissingKeysError lists required keys absent from the bundle.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return "missing required environment keys: " + strings.Join(e.Keys, ", ")
}

// LoadCredentials reads the env file at path and merges it with the process
// environment; process values win so operators can override single keys.
// An empty path skips the file and uses the environment alone.
func LoadCredentials(path string) (*Credentials, error) {
	fileVals := gotenv.Env{}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open env file: %w", err)
		}
		defer f.Close()

		fileVals, err = gotenv.StrictParse(f)
		if err != nil {
			return nil, fmt.Errorf("parse env file %s: %w", path, err)
		}
	}

	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return fileVals[key]
	}

	var missing []string
	for _, key := range requiredKeys {
		if lookup(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingKeysError{Keys: missing}
	}

	creds := &Credentials{
		Auth0Domain:       lookup("AUTH0_DOMAIN"),
		Auth0TokenURL:     lookup("AUTH0_TOKEN_URL"),
		Auth0ClientID:     lookup("AUTH0_CLIENT_ID"),
		Auth0ClientSecret: lookup("AUTH0_CLIENT_SECRET"),
		M2MClientID:       lookup("M2M_CLIENT_ID"),
		M2MClientSecret:   lookup("M2M_CLIENT_SECRET"),
		AuthToken:         lookup("AUTH_TOKEN"),
		TargetBaseURL:     strings.TrimRight(lookup("TARGET_BASE_URL"), "/"),
		TargetAPIURL:      strings.TrimRight(lookup("TARGET_API_URL"), "/"),
		ReportDir:         lookup("REPORT_DIR"),
		ArtifactsDir:      lookup("ARTIFACTS_DIR"),
		PackageIndexURL:   lookup("PACKAGE_INDEX_URL"),
	}
	if creds.Auth0TokenURL == "" {
		creds.Auth0TokenURL = fmt.Sprintf("https://%s/oauth/token", creds.Auth0Domain)
	}
	if creds.ReportDir == "" {
		creds.ReportDir = DefaultReportDir
	}
	if creds.ArtifactsDir == "" {
		creds.ArtifactsDir = DefaultArtifactsDir
	}

	return creds, nil
}
