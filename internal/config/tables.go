package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/crsmerge/internal/countrycode"
	"github.com/ginjaninja78/crsmerge/pkg/utils"
)

// =============================================================================
// REFERENCE TABLES FILE
// =============================================================================

// LoadTables reads reference tables from a YAML file. Unknown keys are an
// error so a misspelled section does not silently fall back to nothing.
//
// PARAMETERS:
//   - path: The path to the tables file.
//
// RETURNS:
//   - The tables. Aliases are checked for conflicts.
//   - An error if the file cannot be read, parsed or has conflicting aliases.
func LoadTables(path string) (countrycode.Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return countrycode.Tables{}, fmt.Errorf("failed to read tables file: %w", err)
	}

	var t countrycode.Tables
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return countrycode.Tables{}, fmt.Errorf("failed to parse tables file %s: %w", path, err)
	}

	if _, err := countrycode.NewNormalizer(t); err != nil {
		return countrycode.Tables{}, fmt.Errorf("invalid tables file %s: %w", path, err)
	}
	return t, nil
}

// WriteTables writes t as YAML.
func WriteTables(path string, t countrycode.Tables) error {
	err := utils.WriteFileAtomic(path, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return err
		}
		return enc.Close()
	})
	if err != nil {
		return fmt.Errorf("failed to write tables file: %w", err)
	}
	return nil
}

// Tables returns the reference tables of the run: the tables file when one
// is configured, the built-in tables otherwise. A relative tables file is
// looked up in DataDir when it does not exist as given.
func (c *Config) Tables() (countrycode.Tables, error) {
	path := c.Mapping.TablesFile
	if path == "" {
		return countrycode.DefaultTables(), nil
	}
	if !filepath.IsAbs(path) && !utils.FileExists(path) {
		path = filepath.Join(c.DataDir, path)
	}
	return LoadTables(path)
}

// DataPath resolves a file name relative to DataDir unless it is absolute.
func (c *Config) DataPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}
