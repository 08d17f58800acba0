package cmd

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/buildk/internal/build"
	"github.com/Norgate-AV/buildk/internal/config"
	"github.com/Norgate-AV/buildk/internal/logging"
	"github.com/Norgate-AV/buildk/internal/manifest"
)

// loadProject finds the manifest above the working directory and loads the
// configuration for it
func loadProject(cmd *cobra.Command) (*manifest.Manifest, *config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	path := manifest.Find(wd)
	if path == "" {
		return nil, nil, fmt.Errorf("%s not found in %s or any parent directory: %w", manifest.FileName, wd, fs.ErrNotExist)
	}

	m, err := manifest.Load(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.NewLoader().LoadForBuild(cmd, m.Dir)
	if err != nil {
		return nil, nil, err
	}

	return m, cfg, nil
}

// newSession opens a build session for the current project
func newSession(cmd *cobra.Command) (*build.Session, error) {
	m, cfg, err := loadProject(cmd)
	if err != nil {
		return nil, err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	logger.Debug("Loaded project", "manifest", m.Path, "cache_root", cfg.CacheRoot)

	return build.NewSession(m, cfg, logger), nil
}
