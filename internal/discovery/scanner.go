package discovery

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/hexforge/modcore/internal/lifecycle"
)

// descriptorPattern matches descriptor files anywhere under the mods dir,
// so both flat layouts (mods/foo/mod.yaml) and nested ones work.
const descriptorPattern = "**/mod.yaml"

// Failure records one descriptor that could not be loaded. A bad mod never
// aborts the scan.
type Failure struct {
	Path string
	Err  error
}

// Result is everything a scan produced.
type Result struct {
	Mods     []*lifecycle.Mod
	Failures []Failure
}

// Scanner discovers mod descriptors under a directory.
type Scanner struct {
	dir    string
	logger *zap.Logger
}

// NewScanner creates a scanner over the mods directory.
func NewScanner(dir string, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{dir: dir, logger: logger}
}

// Scan walks the mods directory for descriptors and builds a mod from each.
// Malformed descriptors are reported per file and skipped.
func (s *Scanner) Scan() (*Result, error) {
	matches, err := doublestar.Glob(os.DirFS(s.dir), descriptorPattern)
	if err != nil {
		return nil, fmt.Errorf("scan mods dir %q: %w", s.dir, err)
	}

	result := &Result{}
	for _, match := range matches {
		path := filepath.Join(s.dir, filepath.FromSlash(match))

		mod, err := s.loadOne(path)
		if err != nil {
			s.logger.Warn("skipping mod descriptor",
				zap.String("path", path),
				zap.Error(err))
			result.Failures = append(result.Failures, Failure{Path: path, Err: err})
			continue
		}

		result.Mods = append(result.Mods, mod)
		s.logger.Info("discovered mod",
			zap.String("mod", mod.Name),
			zap.String("version", mod.Version),
			zap.String("path", path))
	}
	return result, nil
}

func (s *Scanner) loadOne(path string) (*lifecycle.Mod, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	desc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return desc.BuildMod(s.logger)
}
