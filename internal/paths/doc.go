// Package paths resolves where sotugyo keeps its machine-level state.
//
// The configuration directory holds the project registry (projects.yaml),
// the application configuration (config.yaml) and, by default, the package
// repository (rez_packages) and logs. Its location follows platform
// conventions:
//
//	SOTUGYO_MACHINE_CONFIG_DIR           (any platform, highest priority)
//	%APPDATA%\SotugyoTool                (windows)
//	%LOCALAPPDATA%\SotugyoTool           (windows fallback)
//	$XDG_CONFIG_HOME/sotugyotool         (other platforms)
//	~/.config/sotugyotool                (fallback)
//
// Environment variables are read once, through envconfig, when the Resolver
// is constructed.
package paths
