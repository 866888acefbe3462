package config

import (
	"encoding/json"
	"flag"
	"os"
	"strings"
	"sync"
)

type Config struct {
	Port     string `json:"port"`
	DBURL    string `json:"dbUrl"`
	LogLevel string `json:"logLevel"`

	// Storage disks: yaml file with named driver configs; FilesRoot is the
	// fallback local disk used when no file is given.
	DisksFile string `json:"disksFile"`
	FilesRoot string `json:"filesRoot"`
}

func def() Config {
	return Config{
		Port:      "8080",
		DBURL:     "",
		LogLevel:  "info",
		DisksFile: "",
		FilesRoot: "uploads",
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

var registerFlags sync.Once

// LoadWithPath reads the JSON file at jsonPath, then applies ENV and flags.
// Flags are registered exactly once on the default FlagSet, so repeated calls
// (and a -config redirect) never hit "flag redefined"; only flags actually
// given on the command line override the lower layers.
func LoadWithPath(jsonPath string) Config {
	registerFlags.Do(func() {
		flag.String("config", "", "Path to config JSON")
		flag.String("port", "", "HTTP port")
		flag.String("db", "", "Database URL (postgres:// or mysql://)")
		flag.String("log-level", "", "Log level (debug/info/warn/error)")
		flag.String("disks", "", "Path to storage disks yaml")
		flag.String("files-root", "", "Local files root (fallback disk)")
	})
	if !flag.Parsed() {
		flag.Parse()
	}

	set := map[string]string{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = f.Value.String() })

	// -config points the JSON layer elsewhere
	if cp, ok := set["config"]; ok && cp != "" {
		jsonPath = cp
	}

	cfg := def()
	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}

	// ENV overrides
	cfg.Port = getenv("TABULA_PORT", cfg.Port)
	cfg.DBURL = getenv("TABULA_DB_URL", cfg.DBURL)
	cfg.LogLevel = getenv("TABULA_LOG_LEVEL", cfg.LogLevel)
	cfg.DisksFile = getenv("TABULA_DISKS_FILE", cfg.DisksFile)
	cfg.FilesRoot = getenv("TABULA_FILES_ROOT", cfg.FilesRoot)

	// Flags overrides
	if v, ok := set["port"]; ok {
		cfg.Port = strings.TrimSpace(v)
	}
	if v, ok := set["db"]; ok {
		cfg.DBURL = strings.TrimSpace(v)
	}
	if v, ok := set["log-level"]; ok {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v, ok := set["disks"]; ok {
		cfg.DisksFile = strings.TrimSpace(v)
	}
	if v, ok := set["files-root"]; ok {
		cfg.FilesRoot = strings.TrimSpace(v)
	}

	return cfg
}
