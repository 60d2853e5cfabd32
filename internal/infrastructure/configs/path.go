package configs

import (
	"flag"
	"os"

	"github.com/hilthontt/repochat/internal/infrastructure/env"
)

// DetermineConfigPath resolves the config file from --config, VISPER_CONFIG or
// a list of conventional locations. An empty result means "defaults and
// environment only".
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("VISPER_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"../../config.yaml", // keep for local dev
			"/etc/visper/config.yaml",
			"/app/config.yaml", // common in Docker
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
