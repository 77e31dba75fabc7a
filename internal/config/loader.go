package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func profileSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("profiles.json", strings.NewReader(profilesSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("profiles.json")
	})
	return compiledSchema, schemaErr
}

// Wire form of the profiles file. Durations arrive as Go duration strings
// and are parsed after schema validation.
type rawStage struct {
	Name      string  `yaml:"name"`
	Duration  string  `yaml:"duration"`
	Users     int     `yaml:"users"`
	SpawnRate float64 `yaml:"spawnRate"`
}

type rawProfile struct {
	Description  string     `yaml:"description"`
	TaskSet      string     `yaml:"taskSet"`
	Executor     string     `yaml:"executor"`
	Users        int        `yaml:"users"`
	SpawnRate    float64    `yaml:"spawnRate"`
	RunTime      string     `yaml:"runTime"`
	GracefulStop string     `yaml:"gracefulStop"`
	Stages       []rawStage `yaml:"stages"`
	Thresholds   Thresholds `yaml:"thresholds"`
}

type rawFile struct {
	Profiles map[string]rawProfile `yaml:"profiles"`
}

// LoadProfiles merges the profiles file at path over the built-in set.
// An empty path returns the built-ins alone. The file is schema-validated
// before anything is parsed, so a malformed document names the offending
// location instead of half-loading.
func LoadProfiles(path string) (map[string]*Profile, error) {
	profiles := BuiltinProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profiles file %s: %w", path, err)
	}

	schema, err := profileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile profiles schema: %w", err)
	}
	if err := schema.Validate(normalizeForSchema(doc)); err != nil {
		return nil, fmt.Errorf("invalid profiles file %s: %w", path, err)
	}

	var file rawFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profiles file %s: %w", path, err)
	}

	for name, raw := range file.Profiles {
		p, err := raw.toProfile(name)
		if err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		profiles[name] = p
	}

	return profiles, nil
}

func (r rawProfile) toProfile(name string) (*Profile, error) {
	p := &Profile{
		Name:        name,
		Description: r.Description,
		TaskSet:     r.TaskSet,
		Executor:    r.Executor,
		Users:       r.Users,
		SpawnRate:   r.SpawnRate,
		Thresholds:  r.Thresholds,
	}

	var err error
	if r.RunTime != "" {
		if p.RunTime, err = time.ParseDuration(r.RunTime); err != nil {
			return nil, fmt.Errorf("profile %s: bad runTime: %w", name, err)
		}
	}
	if r.GracefulStop != "" {
		if p.GracefulStop, err = time.ParseDuration(r.GracefulStop); err != nil {
			return nil, fmt.Errorf("profile %s: bad gracefulStop: %w", name, err)
		}
	}

	for i, rs := range r.Stages {
		d, err := time.ParseDuration(rs.Duration)
		if err != nil {
			return nil, fmt.Errorf("profile %s: stage %d: bad duration: %w", name, i, err)
		}
		rate := rs.SpawnRate
		if rate == 0 {
			rate = 1
		}
		p.Stages = append(p.Stages, StageSpec{
			Name:      rs.Name,
			Duration:  d,
			Users:     rs.Users,
			SpawnRate: rate,
		})
	}

	if p.Thresholds == (Thresholds{}) {
		p.Thresholds = defaultThresholds
	}
	return p, nil
}

// normalizeForSchema converts YAML's decoded types to what the schema
// validator expects: string-keyed maps and json-compatible numbers.
func normalizeForSchema(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeForSchema(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeForSchema(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeForSchema(val)
		}
		return out
	case int:
		return float64(t)
	default:
		return v
	}
}
