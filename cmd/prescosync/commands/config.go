package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"prescosync/lib/browser"
	"prescosync/lib/configutil"
	"prescosync/lib/scrapers/presco"
	"prescosync/services/prescosync"
)

// Config holds the non-secret tunables, read from config.json5 with
// config.local.json5 overrides. Every field has a workable default so
// the file itself is optional.
type Config struct {
	BaseUrl              string   `json:"base_url"`
	ScratchDir           string   `json:"scratch_dir"`
	MaxAttempts          int      `json:"max_attempts"`
	Headful              bool     `json:"headful"`
	Periods              []string `json:"periods"`
	DateBasis            string   `json:"date_basis"`
	SyncMode             string   `json:"sync_mode"`
	ActionTimeoutSeconds int      `json:"action_timeout_seconds"`
}

func readConfig() (Config, error) {
	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}

	if config.ScratchDir == "" {
		config.ScratchDir = "/tmp/prescosync"
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 3
	}
	if len(config.Periods) == 0 {
		config.Periods = []string{
			string(presco.PeriodYesterday),
			string(presco.PeriodToday),
		}
	}
	if config.DateBasis == "" {
		config.DateBasis = string(presco.BasisActionDate)
	}
	if config.SyncMode == "" {
		config.SyncMode = string(prescosync.ModeReplace)
	}
	if config.ActionTimeoutSeconds == 0 {
		config.ActionTimeoutSeconds = 30
	}
	return config, nil
}

func (c Config) periods() []presco.Period {
	var out []presco.Period
	for _, p := range c.Periods {
		out = append(out, presco.Period(p))
	}
	return out
}

func (c Config) prescoOptions() presco.ClientOptions {
	return presco.ClientOptions{
		BaseUrl:    c.BaseUrl,
		ScratchDir: c.ScratchDir,
		Basis:      presco.DateBasis(c.DateBasis),
		Browser: browser.Options{
			Headless:      !c.Headful,
			ActionTimeout: time.Duration(c.ActionTimeoutSeconds) * time.Second,
		},
	}
}

// Secrets is the environment-provided configuration. Validation is up
// front and fatal, a run must never get as far as the portal with
// half its credentials missing.
type Secrets struct {
	Email             string
	Password          string
	GoogleCredentials []byte
	SpreadsheetId     string
}

func loadSecrets() (Secrets, error) {
	var missing []string
	read := func(name string) string {
		value := os.Getenv(name)
		if value == "" {
			missing = append(missing, name)
		}
		return value
	}

	secrets := Secrets{
		Email:             read("PRESCO_EMAIL"),
		Password:          read("PRESCO_PASSWORD"),
		GoogleCredentials: []byte(read("GOOGLE_CREDENTIALS")),
		SpreadsheetId:     read("SPREADSHEET_ID"),
	}
	if len(missing) > 0 {
		return Secrets{}, fmt.Errorf(
			"missing required environment variables: %s",
			strings.Join(missing, ", "),
		)
	}
	return secrets, nil
}

func (s Secrets) credentials() presco.Credentials {
	return presco.Credentials{
		Email:    s.Email,
		Password: s.Password,
	}
}
