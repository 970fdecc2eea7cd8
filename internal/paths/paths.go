package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	appDirWindows = "SotugyoTool"
	appDirUnix    = "sotugyotool"

	registryFileName       = "projects.yaml"
	legacyRegistryFileName = "projects.json"
	toolRegistryFileName   = "tools.yaml"
	configFileName         = "config.yaml"
	appLogFileName         = "sotugyo.log"
	packagesDirName        = "rez_packages"
	logsDirName            = "logs"
	launchLogsDirName      = "launch"
)

// Environment holds the environment variables that influence path resolution.
type Environment struct {
	MachineConfigDir string `envconfig:"SOTUGYO_MACHINE_CONFIG_DIR"`
	LogDir           string `envconfig:"SOTUGYO_LOG_DIR"`
	PackagesPath     string `envconfig:"REZ_PACKAGES_PATH"`
	AppData          string `envconfig:"APPDATA"`
	LocalAppData     string `envconfig:"LOCALAPPDATA"`
	XDGConfigHome    string `envconfig:"XDG_CONFIG_HOME"`
}

// LoadEnvironment reads Environment from the process environment.
func LoadEnvironment() (Environment, error) {
	var env Environment
	if err := envconfig.Process("", &env); err != nil {
		return Environment{}, fmt.Errorf("failed to read path environment: %w", err)
	}
	return env, nil
}

// Resolver computes the storage locations used by the application.
// It holds no open resources and is safe for concurrent use.
type Resolver struct {
	env     Environment
	goos    string
	home    string
	homeErr error
}

// NewResolver returns a Resolver for the current process environment and OS.
func NewResolver() (*Resolver, error) {
	env, err := LoadEnvironment()
	if err != nil {
		return nil, err
	}
	home, homeErr := os.UserHomeDir()
	return &Resolver{env: env, goos: runtime.GOOS, home: home, homeErr: homeErr}, nil
}

// NewResolverFor returns a Resolver for an explicit environment, OS and home
// directory. An empty home means the home directory is unknown.
func NewResolverFor(env Environment, goos, home string) *Resolver {
	r := &Resolver{env: env, goos: goos, home: home}
	if home == "" {
		r.homeErr = errors.New("home directory is not known")
	}
	return r
}

// WithConfigDir returns a copy of r whose configuration directory is fixed to dir.
func (r *Resolver) WithConfigDir(dir string) *Resolver {
	cp := *r
	cp.env.MachineConfigDir = dir
	return &cp
}

// ConfigDir returns the machine configuration directory.
//
// Precedence: SOTUGYO_MACHINE_CONFIG_DIR, then on windows APPDATA and
// LOCALAPPDATA, elsewhere XDG_CONFIG_HOME, and finally a directory under the
// user's home.
func (r *Resolver) ConfigDir() (string, error) {
	if dir := strings.TrimSpace(r.env.MachineConfigDir); dir != "" {
		return filepath.Clean(dir), nil
	}

	if r.goos == "windows" {
		for _, base := range []string{r.env.AppData, r.env.LocalAppData} {
			if base = strings.TrimSpace(base); base != "" {
				return filepath.Join(base, appDirWindows), nil
			}
		}
		if r.homeErr != nil {
			return "", fmt.Errorf("failed to determine configuration directory: %w", r.homeErr)
		}
		return filepath.Join(r.home, "AppData", "Roaming", appDirWindows), nil
	}

	if base := strings.TrimSpace(r.env.XDGConfigHome); base != "" {
		return filepath.Join(base, appDirUnix), nil
	}
	if r.homeErr != nil {
		return "", fmt.Errorf("failed to determine configuration directory: %w", r.homeErr)
	}
	return filepath.Join(r.home, ".config", appDirUnix), nil
}

// ConfigFile returns the path of the application configuration file.
func (r *Resolver) ConfigFile() (string, error) {
	return r.inConfigDir(configFileName)
}

// RegistryPath returns the path of the project registry document.
func (r *Resolver) RegistryPath() (string, error) {
	return r.inConfigDir(registryFileName)
}

// LegacyRegistryPath returns the path of the JSON registry written by earlier releases.
func (r *Resolver) LegacyRegistryPath() (string, error) {
	return r.inConfigDir(legacyRegistryFileName)
}

// ToolRegistryPath returns the path of the registered-tool document.
func (r *Resolver) ToolRegistryPath() (string, error) {
	return r.inConfigDir(toolRegistryFileName)
}

// DefaultPackageRoot returns the package repository bundled with the configuration directory.
func (r *Resolver) DefaultPackageRoot() (string, error) {
	return r.inConfigDir(packagesDirName)
}

// LogDir returns the directory for application and launch logs.
func (r *Resolver) LogDir() (string, error) {
	if dir := strings.TrimSpace(r.env.LogDir); dir != "" {
		return filepath.Clean(dir), nil
	}
	return r.inConfigDir(logsDirName)
}

// LaunchLogDir returns the directory that receives one log file per tool launch.
func (r *Resolver) LaunchLogDir() (string, error) {
	dir, err := r.LogDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, launchLogsDirName), nil
}

// AppLogPath returns the rotated application log file.
func (r *Resolver) AppLogPath() (string, error) {
	dir, err := r.LogDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appLogFileName), nil
}

// PackageRoots returns the ordered package repository roots: configured roots
// first, then REZ_PACKAGES_PATH entries, then the default package root.
// Empty entries and duplicates are dropped, keeping the first occurrence.
func (r *Resolver) PackageRoots(configured []string) []string {
	var candidates []string
	candidates = append(candidates, configured...)
	candidates = append(candidates, SplitPathList(r.env.PackagesPath)...)
	if def, err := r.DefaultPackageRoot(); err == nil {
		candidates = append(candidates, def)
	}
	return Dedupe(candidates)
}

// PackagesPathEnv returns the current REZ_PACKAGES_PATH value.
func (r *Resolver) PackagesPathEnv() string {
	return r.env.PackagesPath
}

func (r *Resolver) inConfigDir(name string) (string, error) {
	dir, err := r.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// SplitPathList splits an OS path list, dropping empty entries.
func SplitPathList(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	var out []string
	for _, p := range filepath.SplitList(list) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Dedupe cleans each path and removes repeats, preserving order.
func Dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
