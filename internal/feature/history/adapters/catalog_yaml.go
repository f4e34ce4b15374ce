package adapters

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"price_history/internal/feature/history/domain/entity"
	"price_history/internal/feature/history/usecase"
)

// Catalog is the static description of the sources: per-source symbol overrides
// and the local archive files with the alias each one covers.
//
//	aliases:
//	  BRK.B: {bulk: BRK_B, live: BRK-B}
//	local_files:
//	  "Avaya Stock Price History.csv": AV
type Catalog struct {
	Aliases    map[string]map[string]string `yaml:"aliases"`
	LocalFiles map[string]string            `yaml:"local_files"`
}

// LoadCatalog reads a catalog file. An empty path yields an empty catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return Catalog{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes catalog YAML after expanding ${VAR} references.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog yaml: %w", err)
	}
	return c, nil
}

// AliasMap converts the alias section into an immutable AliasMap.
func (c Catalog) AliasMap() (usecase.AliasMap, error) {
	overrides := make(map[string]map[entity.SourceKind]string, len(c.Aliases))
	for ticker, bySource := range c.Aliases {
		inner := make(map[entity.SourceKind]string, len(bySource))
		for name, alias := range bySource {
			kind, err := entity.ParseSourceKind(name)
			if err != nil {
				return usecase.AliasMap{}, fmt.Errorf("aliases.%s: %w", ticker, err)
			}
			inner[kind] = alias
		}
		overrides[ticker] = inner
	}
	return usecase.NewAliasMap(overrides), nil
}
