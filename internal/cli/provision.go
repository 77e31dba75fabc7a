package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cytoreason/stampede/internal/secrets"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Resolve secrets from the cluster into the environment file",
	Long: `Provision fetches credentials from the Kubernetes secret store and writes
them, together with any static values, to the environment file the run
commands read. Nothing is written unless every secret resolves; a failed
lookup exits non-zero with the file untouched.

References come from a YAML manifest or from --from flags:

  stampede provision --manifest secrets.yaml
  stampede provision \
    --from AUTH0_CLIENT_SECRET=auth/auth0-m2m/client-secret \
    --set AUTH0_DOMAIN=cytoreason-pyy.eu.auth0.com \
    --output .env

Manifest format:

  secrets:
    - key: AUTH0_CLIENT_SECRET
      namespace: auth
      name: auth0-m2m
      field: client-secret
  static:
    AUTH0_DOMAIN: cytoreason-pyy.eu.auth0.com`,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().String("manifest", "", "YAML manifest of secret references and static values")
	provisionCmd.Flags().StringArray("from", nil, "secret reference KEY=namespace/name/field (repeatable)")
	provisionCmd.Flags().StringArray("set", nil, "static value KEY=value (repeatable)")
	provisionCmd.Flags().StringP("output", "o", ".env", "environment file to write")
}

// provisionManifest is the wire form of the --manifest file.
type provisionManifest struct {
	Secrets []secrets.Ref     `yaml:"secrets"`
	Static  map[string]string `yaml:"static"`
}

func runProvision(cmd *cobra.Command, args []string) error {
	manifestPath, _ := cmd.Flags().GetString("manifest")
	fromSpecs, _ := cmd.Flags().GetStringArray("from")
	setSpecs, _ := cmd.Flags().GetStringArray("set")
	outputPath, _ := cmd.Flags().GetString("output")
	verbose, _ := cmd.Flags().GetBool("verbose")

	log, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	var refs []secrets.Ref
	statics := map[string]string{}

	if manifestPath != "" {
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			return fmt.Errorf("read manifest: %w", err)
		}
		var m provisionManifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("parse manifest %s: %w", manifestPath, err)
		}
		refs = append(refs, m.Secrets...)
		for k, v := range m.Static {
			statics[k] = v
		}
	}

	for _, spec := range fromSpecs {
		ref, err := parseRefSpec(spec)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}
	for _, spec := range setSpecs {
		key, value, ok := strings.Cut(spec, "=")
		if !ok || key == "" {
			return fmt.Errorf("bad --set %q, want KEY=value", spec)
		}
		statics[key] = value
	}

	if len(refs) == 0 && len(statics) == 0 {
		return fmt.Errorf("nothing to provision: give --manifest, --from or --set")
	}

	store := secrets.NewKubectlStore(log)
	if err := secrets.Provision(cmd.Context(), store, refs, statics, outputPath, log); err != nil {
		return err
	}

	fmt.Printf("Wrote %d values to %s\n", len(refs)+len(statics), outputPath)
	return nil
}

// parseRefSpec parses KEY=namespace/name/field.
func parseRefSpec(spec string) (secrets.Ref, error) {
	key, addr, ok := strings.Cut(spec, "=")
	if !ok || key == "" {
		return secrets.Ref{}, fmt.Errorf("bad --from %q, want KEY=namespace/name/field", spec)
	}
	parts := strings.SplitN(addr, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return secrets.Ref{}, fmt.Errorf("bad --from %q, want KEY=namespace/name/field", spec)
	}
	return secrets.Ref{
		Key:       key,
		Namespace: parts[0],
		Name:      parts[1],
		Field:     parts[2],
	}, nil
}
