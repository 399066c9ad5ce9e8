package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the optional manifest in a models directory.
const ManifestFile = "models.yaml"

type manifest struct {
	Models []Model `yaml:"models"`
}

// LoadDir loads every *.sql file under dir plus dir/models.yaml if present.
// Models are returned in name order with dependencies resolved.
func LoadDir(dir string) ([]Model, error) {
	var models []Model

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		m, err := ParseSQL(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		m.Path = path
		models = append(models, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("model: load %s: %w", dir, err)
	}

	manifestPath := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(manifestPath)
	switch {
	case err == nil:
		ms, err := ParseManifest(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", manifestPath, err)
		}
		for i := range ms {
			ms[i].Path = manifestPath
		}
		models = append(models, ms...)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("model: %w", err)
	}

	return Resolve(models)
}

// ParseManifest parses a models.yaml manifest.
func ParseManifest(data []byte) ([]Model, error) {
	var mf manifest
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	for i := range mf.Models {
		kind, err := ParseKind(string(mf.Models[i].Kind))
		if err != nil {
			return nil, err
		}
		mf.Models[i].Kind = kind
		mf.Models[i].Query = strings.TrimSpace(mf.Models[i].Query)
	}
	return mf.Models, nil
}

// ParseSQL parses a model file: a /* YAML */ header followed by the query.
func ParseSQL(data []byte) (Model, error) {
	text := strings.TrimSpace(string(data))
	if !strings.HasPrefix(text, "/*") {
		return Model{}, fmt.Errorf("%w: missing /* header */", ErrInvalidModel)
	}
	end := strings.Index(text, "*/")
	if end < 0 {
		return Model{}, fmt.Errorf("%w: unterminated header", ErrInvalidModel)
	}

	var m Model
	if err := yaml.Unmarshal([]byte(text[2:end]), &m); err != nil {
		return Model{}, fmt.Errorf("%w: header: %v", ErrInvalidModel, err)
	}
	kind, err := ParseKind(string(m.Kind))
	if err != nil {
		return Model{}, err
	}
	m.Kind = kind

	body := strings.TrimSpace(text[end+2:])
	if m.Query == "" {
		m.Query = strings.TrimSpace(strings.TrimSuffix(body, ";"))
	}
	return m, nil
}

// Resolve validates models, rejects duplicates, fills in inferred
// dependencies and returns the models sorted by name.
func Resolve(models []Model) ([]Model, error) {
	byName := make(map[string]int, len(models))
	for i, m := range models {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(m.Name)
		if j, ok := byName[key]; ok {
			return nil, fmt.Errorf("%w: %s (%s, %s)", ErrDuplicateModel, m.Name, models[j].Path, m.Path)
		}
		byName[key] = i
	}

	out := make([]Model, len(models))
	copy(out, models)
	for i := range out {
		if len(out[i].DependsOn) == 0 {
			out[i].DependsOn = inferDependencies(out[i], out)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// inferDependencies finds other model names referenced in m's query.
func inferDependencies(m Model, all []Model) []string {
	if m.Query == "" {
		return nil
	}
	var deps []string
	for _, other := range all {
		if strings.EqualFold(other.Name, m.Name) {
			continue
		}
		re := regexp.MustCompile(`(?i)(^|[^\w"])` + regexp.QuoteMeta(other.Name) + `($|[^\w"])`)
		if re.MatchString(m.Query) {
			deps = append(deps, other.Name)
		}
	}
	sort.Strings(deps)
	return deps
}
