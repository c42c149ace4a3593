package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"

	"github.com/koyomi-batch/koyomi/internal/exception"
	"github.com/koyomi-batch/koyomi/internal/koyomilog"
)

const moduleName = "config"

var validate = validator.New()

// Load reads a flat `key=value` (or `key="value"`) configuration file and
// returns a validated *Config. It optionally loads a `.env` file into the
// process environment first; those variables are inherited by launched
// jobs, but Config fields come only from the defaults and the flat file.
//
// envFilePath may be empty, in which case no .env overlay is attempted.
func Load(path string, envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			koyomilog.Debugf("config: .env file %q not loaded: %v", envFilePath, err)
		}
	}

	raw, err := parseFlatFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, exception.Fatal(moduleName, "failed to build config decoder", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, exception.Fatal(moduleName, "failed to bind configuration", err)
	}
	cfg.normalize()

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseFlatFile reads `KEY=value` / `KEY="value"` lines into a
// map[string]string. Unrecognized keys are kept in the map (and simply
// ignored by the decoder, since Config has no matching field) rather than
// rejected.
func parseFlatFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, exception.Fatal(moduleName, fmt.Sprintf("cannot read config file %q", path), err)
	}
	defer f.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		value = strings.Trim(value, `"`)
		result[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, exception.Fatal(moduleName, fmt.Sprintf("error scanning config file %q", path), err)
	}
	return result, nil
}

// validateConfig enforces the structural rule that AuditTableUpdateInterval
// must not be shorter than JobPollInterval, on top of the struct-tag
// validations.
func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return exception.Fatal(moduleName, "configuration validation failed", err)
	}
	if cfg.AuditTableUpdateInterval < cfg.JobPollInterval {
		return exception.Fatal(moduleName, fmt.Sprintf(
			"AuditTableUpdateInterval (%d) must be >= JobPollInterval (%d)",
			cfg.AuditTableUpdateInterval, cfg.JobPollInterval), nil)
	}
	return nil
}
