// SPDX-License-Identifier: MPL-2.0

package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/envrun/envrun/internal/issue"
)

// Candidate file names, in lookup order.
const (
	TOMLFileName = "envrun.toml"
	CUEFileName  = "envrun.cue"
)

// ErrNoConfig is returned when no configuration file could be located.
var ErrNoConfig = errors.New("no envrun configuration found")

// Discover loads the project configuration. An explicit path wins; otherwise
// root is searched for envrun.toml and then envrun.cue.
func Discover(root, explicit string) (Source, error) {
	if explicit != "" {
		src, err := loadByExtension(explicit)
		if err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load project configuration").
				WithResource(explicit).
				WithSuggestion("Check that the file exists and uses the .toml or .cue extension").
				Wrap(err).
				BuildError()
		}
		return src, nil
	}

	for _, name := range []string{TOMLFileName, CUEFileName} {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		src, err := loadByExtension(path)
		if err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load project configuration").
				WithResource(path).
				WithSuggestion("Fix the syntax error reported above").
				Wrap(err).
				BuildError()
		}
		return src, nil
	}

	return nil, issue.NewErrorContext().
		WithOperation("load project configuration").
		WithResource(root).
		WithSuggestions(
			fmt.Sprintf("Create %s or %s in the project root", TOMLFileName, CUEFileName),
			"Pass --conf to point at a configuration file elsewhere",
		).
		Wrap(ErrNoConfig).
		BuildError()
}

func loadByExtension(path string) (*Memory, error) {
	switch filepath.Ext(path) {
	case ".toml":
		return LoadTOML(path)
	case ".cue":
		return LoadCUE(path)
	default:
		return nil, fmt.Errorf("unsupported configuration format %q", filepath.Ext(path))
	}
}
