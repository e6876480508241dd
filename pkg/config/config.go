package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/harrisonrobin/notedo/pkg/datastore"
)

const (
	DefaultTaskNoteTemplate   = "- [ ] {{content}} []({{url}}) {{priority}} {{labels}} {{due}} {{description}} #tasktodo"
	DefaultRepeatTaskTemplate = "- [ ] {{content}} []({{url}}) {{priority}} {{labels}} {{due}} {{description}} #repeattodo"

	tokenEnv = "TODOIST_API_TOKEN"
	vaultEnv = "NOTEDO_VAULT"
)

// Filters narrows the consolidated note.
type Filters struct {
	Projects []string `json:"projects"`
	Labels   []string `json:"labels"`
}

// Config holds the settings. It lives at the top level of the shared data
// blob, next to taskMappings and the calendar caches.
type Config struct {
	APIToken                    string  `json:"apiToken"`
	VaultDir                    string  `json:"vaultDir"`
	DefaultProject              string  `json:"defaultProject"`
	InsertTaskInNote            bool    `json:"insertTaskInNote"`
	TaskNoteTemplate            string  `json:"taskNoteTemplate"`
	RepeatTaskTemplate          string  `json:"repeatTaskTemplate"`
	AutoRefresh                 bool    `json:"autoRefresh"`
	RefreshInterval             int     `json:"refreshInterval"`
	EnableSync                  bool    `json:"enableSync"`
	SyncInterval                int     `json:"syncInterval"`
	DefaultTime                 string  `json:"defaultTime"`
	DefaultDuration             int     `json:"defaultDuration"`
	EnableTimeSelection         bool    `json:"enableTimeSelection"`
	ConsolidatedNotePath        string  `json:"consolidatedNotePath"`
	ConsolidatedNoteFilters     Filters `json:"consolidatedNoteFilters"`
	AutoRefreshConsolidated     bool    `json:"autoRefreshConsolidated"`
	ConsolidatedRefreshInterval int     `json:"consolidatedRefreshInterval"`
	Calendar                    string  `json:"calendar"`

	// fromEnv maps a JSON key overridden by the environment to the value it
	// had in the blob. Save writes that value back while the override is
	// unchanged, so environment secrets stay off disk.
	fromEnv map[string]envOverride
}

type envOverride struct {
	value  string
	stored string
}

// Default returns the settings used when nothing has been saved yet.
func Default() *Config {
	return &Config{
		InsertTaskInNote:            true,
		TaskNoteTemplate:            DefaultTaskNoteTemplate,
		RepeatTaskTemplate:          DefaultRepeatTaskTemplate,
		RefreshInterval:             300,
		EnableSync:                  true,
		SyncInterval:                60,
		DefaultTime:                 "08:00",
		DefaultDuration:             60,
		ConsolidatedNotePath:        "tasks/consolidated-tasks",
		ConsolidatedNoteFilters:     Filters{Projects: []string{}, Labels: []string{}},
		AutoRefreshConsolidated:     true,
		ConsolidatedRefreshInterval: 60,
	}
}

// Load overlays the stored settings on the defaults. Keys missing from the
// blob keep their default value. TODOIST_API_TOKEN and NOTEDO_VAULT override
// the stored token and vault directory.
func Load(store *datastore.Store) (*Config, error) {
	cfg := Default()

	data, err := store.Load()
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	cfg.override("apiToken", &cfg.APIToken, os.Getenv(tokenEnv))
	cfg.override("vaultDir", &cfg.VaultDir, os.Getenv(vaultEnv))
	return cfg, nil
}

func (c *Config) override(key string, field *string, value string) {
	if value == "" {
		return
	}
	if c.fromEnv == nil {
		c.fromEnv = make(map[string]envOverride)
	}
	c.fromEnv[key] = envOverride{value: value, stored: *field}
	*field = value
}

// Save merges the settings into the blob without touching other keys.
func Save(store *datastore.Store, cfg *Config) error {
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal(b, &values); err != nil {
		return err
	}
	for key, o := range cfg.fromEnv {
		var current string
		if err := json.Unmarshal(values[key], &current); err != nil || current != o.value {
			continue
		}
		stored, err := json.Marshal(o.stored)
		if err != nil {
			return err
		}
		values[key] = stored
	}
	if err := store.MergeAll(values); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Vault returns the vault directory, defaulting to the working directory.
func (c *Config) Vault() (string, error) {
	if c.VaultDir != "" {
		return c.VaultDir, nil
	}
	return os.Getwd()
}

// RepeatTemplate falls back to the single-task template when unset.
func (c *Config) RepeatTemplate() string {
	if c.RepeatTaskTemplate != "" {
		return c.RepeatTaskTemplate
	}
	return c.TaskNoteTemplate
}

func (c *Config) RefreshEvery() time.Duration {
	return seconds(c.RefreshInterval)
}

func (c *Config) SyncEvery() time.Duration {
	return seconds(c.SyncInterval)
}

func (c *Config) ConsolidatedEvery() time.Duration {
	return seconds(c.ConsolidatedRefreshInterval)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
