package schema

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formsync/pkg/model"
)

type documentFile struct {
	Entities map[string]model.EntitySchema `json:"entities" yaml:"entities"`
}

// LoadFS walks the provided filesystem and parses JSON/YAML entity
// declarations. The map key of each entry names the entity; an explicit
// `entity` attribute must agree with it. Declarations are returned sorted by
// entity name and are not built; pass them to Registry.Register.
func LoadFS(fsys fs.FS) ([]model.EntitySchema, error) {
	if fsys == nil {
		return nil, nil
	}

	seen := make(map[string]string)
	var decls []model.EntitySchema
	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isSchemaFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("schema: read %s: %w", path, err)
		}
		doc, err := parseDocument(data, path)
		if err != nil {
			return err
		}

		for key, decl := range doc.Entities {
			name := strings.TrimSpace(key)
			if name == "" {
				return fmt.Errorf("schema: file %s defines an empty entity name", path)
			}
			if decl.Entity != "" && decl.Entity != name {
				return fmt.Errorf("schema: file %s entity %q declares mismatched name %q", path, name, decl.Entity)
			}
			if prev, exists := seen[name]; exists {
				return fmt.Errorf("schema: duplicate entity %q (files %s and %s)", name, prev, path)
			}
			seen[name] = path
			decl.Entity = name
			decls = append(decls, decl)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(decls, func(i, j int) bool { return decls[i].Entity < decls[j].Entity })
	return decls, nil
}

func parseDocument(data []byte, source string) (documentFile, error) {
	var doc documentFile
	if len(strings.TrimSpace(string(data))) == 0 {
		return documentFile{}, fmt.Errorf("schema: file %s is empty", source)
	}

	if strings.EqualFold(filepath.Ext(source), ".json") {
		if err := json.Unmarshal(data, &doc); err != nil {
			return documentFile{}, fmt.Errorf("schema: parse %s: %w", source, err)
		}
		return doc, nil
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return documentFile{}, fmt.Errorf("schema: parse %s: %w", source, err)
	}
	return doc, nil
}

func isSchemaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
