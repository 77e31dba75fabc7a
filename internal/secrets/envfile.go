package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// WriteEnvFile writes key=value lines atomically: the content goes to a
// temp file in the target directory and is moved into place with a single
// rename, so a concurrent reader never observes a partial file.
func WriteEnvFile(path string, pairs map[string]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create env dir: %w", err)
	}

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, pairs[k])
	}

	tmp, err := os.CreateTemp(dir, ".env-*")
	if err != nil {
		return fmt.Errorf("create temp env file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp env file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp env file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp env file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("commit env file: %w", err)
	}
	return nil
}

// Provision resolves every ref against the store and writes the env file.
// Any unresolvable ref aborts before anything is written; statics are
// constants merged into the output as-is.
func Provision(ctx context.Context, store Store, refs []Ref, statics map[string]string, path string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	pairs := make(map[string]string, len(refs)+len(statics))
	for k, v := range statics {
		pairs[k] = v
	}

	for _, ref := range refs {
		if ref.Key == "" {
			return fmt.Errorf("secret ref %s/%s/%s has no env key", ref.Namespace, ref.Name, ref.Field)
		}
		value, err := store.Fetch(ctx, ref.Namespace, ref.Name, ref.Field)
		if err != nil {
			return fmt.Errorf("provision %s: %w", ref.Key, err)
		}
		pairs[ref.Key] = value
	}

	if err := WriteEnvFile(path, pairs); err != nil {
		return err
	}

	log.Info("provisioned credentials",
		zap.String("path", path),
		zap.Int("resolved", len(refs)),
		zap.Int("static", len(statics)))
	return nil
}
