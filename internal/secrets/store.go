// Package secrets resolves credentials from an external secret store and
// writes them to the environment file consumed by the run commands.
package secrets

import "context"

// Store reads one field of a named secret.
type Store interface {
	Fetch(ctx context.Context, namespace, name, field string) (string, error)
}

// Ref addresses one secret field and the environment key it populates.
type Ref struct {
	Key       string `yaml:"key"`
	Namespace string `yaml:"namespace"`
	Name      string `yaml:"name"`
	Field     string `yaml:"field"`
}
