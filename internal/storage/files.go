package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WriteLinks writes links to path, one per line, in the given order.
// An empty slice produces an empty file.
func WriteLinks(path string, links []string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create links file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close links file: %w", cerr)
		}
	}()

	w := bufio.NewWriter(file)
	for _, link := range links {
		if _, err := w.WriteString(link + "\n"); err != nil {
			return fmt.Errorf("failed to write links file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write links file: %w", err)
	}
	return nil
}

// WriteArchive writes the page archive (URL to markup) to path. Files with
// a .yaml or .yml extension are written as YAML, anything else as JSON.
func WriteArchive(path string, archive map[string]string) error {
	if archive == nil {
		archive = map[string]string{}
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(archive)
	default:
		data, err = json.MarshalIndent(archive, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	return nil
}
