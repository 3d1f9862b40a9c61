package cli

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/opsdesk/opsdesk/internal/config"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// OPSDESK_DATA_DIR env var, or ~/.opsdesk as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("OPSDESK_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.opsdesk"
}

// openConfigStore opens the SQLite config store, defaulting to ~/.opsdesk
// if no data dir was specified.
func openConfigStore() (*config.Store, error) {
	return config.NewStore(resolveDataDir())
}

// resolveUpstreamURL returns the helpdesk base URL from OPSDESK_UPSTREAM_URL
// or the config file. Empty means the client default (http://localhost:3000).
func resolveUpstreamURL() string {
	if envURL := os.Getenv("OPSDESK_UPSTREAM_URL"); envURL != "" {
		return envURL
	}
	return viper.GetString("upstream.base_url")
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
