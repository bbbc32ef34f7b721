package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tool locations and install policy used by a run.
type Config struct {
	// Archiver is the generic archive extractor binary (7-Zip compatible CLI).
	Archiver string `yaml:"archiver"`
	// PackageExtractor is the structured installer package extractor (msitools msiextract).
	PackageExtractor string `yaml:"package_extractor"`
	// WorkspaceDir is where run workspaces are created. Empty means the OS temp dir.
	WorkspaceDir string `yaml:"workspace_dir"`
	// SearchDepth bounds the bootstrapper search inside the outer archive.
	SearchDepth int `yaml:"search_depth"`
	// BlockSize is the read block size used when carving the appended container.
	BlockSize int `yaml:"block_size"`
	// ToolTimeout limits a single external tool invocation.
	ToolTimeout time.Duration `yaml:"tool_timeout"`
	// DownloadTimeout limits fetching a remote package.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	// RebuildCommand runs once after a high-impact firmware file was installed.
	RebuildCommand []string `yaml:"rebuild_command"`
	// OwnerUID is the owner applied to installed files when running as root.
	OwnerUID int `yaml:"owner_uid"`
	// OwnerGID is the group applied to installed files when running as root.
	OwnerGID int `yaml:"owner_gid"`
	// Targets adds or overrides device identifier to install path entries.
	Targets map[string]string `yaml:"targets"`
}

const (
	// DefaultConfigFilename is looked up in the working directory when no path is given.
	DefaultConfigFilename = "fwsync.yaml"

	// DefaultArchiver is the 7-Zip command line binary.
	DefaultArchiver = "7z"

	// DefaultPackageExtractor preserves embedded file names of installer packages.
	DefaultPackageExtractor = "msiextract"

	// DefaultSearchDepth is how deep the bootstrapper may sit in the outer archive.
	DefaultSearchDepth = 3

	// DefaultBlockSize matches a typical filesystem block.
	DefaultBlockSize = 4096

	// DefaultToolTimeout bounds one archiver or extractor run.
	DefaultToolTimeout = 10 * time.Minute

	// DefaultDownloadTimeout bounds fetching a remote package.
	DefaultDownloadTimeout = 5 * time.Minute

	// DefaultFilePermissions is used when saving the settings file.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidTargetPath is returned for relative or empty target paths.
	errInvalidTargetPath = errors.New("target path must be absolute")
	// errInvalidRebuildCommand is returned when the rebuild command has an empty program.
	errInvalidRebuildCommand = errors.New("rebuild command program is empty")
	// errNegative is returned for negative numeric settings.
	errNegative = errors.New("value must not be negative")
)

// DefaultRebuildCommand regenerates the initramfs that embeds early-boot firmware.
func DefaultRebuildCommand() []string {
	return []string{"update-initramfs", "-u"}
}

// Default returns the built-in settings.
func Default() *Config {
	cfg := new(Config)

	// Validate only fills defaults for an empty config, it cannot fail.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from path. An empty path loads DefaultConfigFilename
// when it exists and falls back to Default otherwise; an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills defaults for empty fields.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.Archiver = strings.TrimSpace(settings.Archiver); settings.Archiver == "" {
		settings.Archiver = DefaultArchiver
	}

	if settings.PackageExtractor = strings.TrimSpace(settings.PackageExtractor); settings.PackageExtractor == "" {
		settings.PackageExtractor = DefaultPackageExtractor
	}

	if settings.WorkspaceDir != "" {
		settings.WorkspaceDir = filepath.Clean(settings.WorkspaceDir)
	}

	if settings.SearchDepth <= 0 {
		settings.SearchDepth = DefaultSearchDepth
	}

	if settings.BlockSize <= 0 {
		settings.BlockSize = DefaultBlockSize
	}

	if settings.ToolTimeout <= 0 {
		settings.ToolTimeout = DefaultToolTimeout
	}

	if settings.DownloadTimeout <= 0 {
		settings.DownloadTimeout = DefaultDownloadTimeout
	}

	if len(settings.RebuildCommand) == 0 {
		settings.RebuildCommand = DefaultRebuildCommand()
	}

	if strings.TrimSpace(settings.RebuildCommand[0]) == "" {
		return errInvalidRebuildCommand
	}

	if settings.OwnerUID < 0 || settings.OwnerGID < 0 {
		return fmt.Errorf("owner: %w", errNegative)
	}

	for id, path := range settings.Targets {
		if path == "" || !filepath.IsAbs(path) {
			return fmt.Errorf("target %s (%q): %w", id, path, errInvalidTargetPath)
		}

		settings.Targets[id] = filepath.Clean(path)
	}

	return nil
}
