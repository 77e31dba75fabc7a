package secrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// runner executes a command and returns its stdout. Injectable for tests.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %s", name, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// KubectlStore reads secrets via the kubectl CLI. Field values arrive
// base64-encoded in the secret's data map.
type KubectlStore struct {
	run runner
	log *zap.Logger
}

// NewKubectlStore builds a store that shells out to kubectl.
func NewKubectlStore(log *zap.Logger) *KubectlStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &KubectlStore{run: execRunner, log: log}
}

func (s *KubectlStore) Fetch(ctx context.Context, namespace, name, field string) (string, error) {
	out, err := s.run(ctx, "kubectl", "get", "secret", name, "-n", namespace, "-o", "json")
	if err != nil {
		return "", fmt.Errorf("fetch secret %s/%s: %w", namespace, name, err)
	}

	encoded := gjson.GetBytes(out, "data."+gjsonEscape(field))
	if !encoded.Exists() {
		return "", fmt.Errorf("secret %s/%s has no field %q", namespace, name, field)
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded.String())
	if err != nil {
		return "", fmt.Errorf("decode secret %s/%s field %q: %w", namespace, name, field, err)
	}

	s.log.Debug("resolved secret field",
		zap.String("namespace", namespace),
		zap.String("secret", name),
		zap.String("field", field))
	return string(decoded), nil
}

// gjsonEscape escapes dots in field names so they are treated as literal keys.
func gjsonEscape(field string) string {
	return strings.ReplaceAll(field, ".", `\.`)
}

// StaticStore serves secrets from an in-memory map keyed by
// namespace/name/field.
type StaticStore struct {
	values map[string]string
}

// NewStaticStore builds a store over fixed values. Keys are
// "namespace/name/field".
func NewStaticStore(values map[string]string) *StaticStore {
	return &StaticStore{values: values}
}

func (s *StaticStore) Fetch(_ context.Context, namespace, name, field string) (string, error) {
	key := namespace + "/" + name + "/" + field
	v, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("secret %s not found", key)
	}
	return v, nil
}
