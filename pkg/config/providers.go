package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider kinds.
const (
	KindGmail   = "gmail"
	KindOutlook = "outlook"
	KindIMAP    = "imap"
)

// Sync strategies.
const (
	StrategyCursorReplay = "cursor_replay"
	StrategyFullRefetch  = "full_refetch"
)

// ProviderConfig describes one configured mail provider.
type ProviderConfig struct {
	Name         string        `yaml:"name"`
	Kind         string        `yaml:"kind"`
	Strategy     string        `yaml:"strategy"`
	Account      string        `yaml:"account"`
	FetchCount   int           `yaml:"fetch_count"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type providersFile struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// Providers returns the provider list: from PROVIDERS_FILE when set, otherwise
// one entry per provider whose credentials are configured.
func (c *Config) Providers() ([]ProviderConfig, error) {
	var list []ProviderConfig
	if c.ProvidersFile != "" {
		data, err := os.ReadFile(c.ProvidersFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read providers file: %w", err)
		}
		list, err = ParseProviders(data)
		if err != nil {
			return nil, err
		}
	} else {
		list = c.providersFromEnv()
	}

	for i := range list {
		if list[i].FetchCount <= 0 {
			list[i].FetchCount = c.DefaultFetchCount
		}
		if list[i].PollInterval <= 0 {
			list[i].PollInterval = c.DefaultPollInterval
		}
	}
	return list, nil
}

// ParseProviders decodes and validates a YAML provider list.
func ParseProviders(data []byte) ([]ProviderConfig, error) {
	var f providersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}

	seen := make(map[string]bool, len(f.Providers))
	for i, p := range f.Providers {
		if p.Name == "" {
			return nil, fmt.Errorf("provider #%d: name is required", i+1)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("provider %q: duplicate name", p.Name)
		}
		seen[p.Name] = true

		switch p.Kind {
		case KindGmail, KindOutlook, KindIMAP:
		default:
			return nil, fmt.Errorf("provider %q: unknown kind %q", p.Name, p.Kind)
		}

		if p.Strategy == "" {
			f.Providers[i].Strategy = defaultStrategy(p.Kind)
		} else if p.Strategy != StrategyCursorReplay && p.Strategy != StrategyFullRefetch {
			return nil, fmt.Errorf("provider %q: unknown strategy %q", p.Name, p.Strategy)
		}
		if p.Kind == KindIMAP && f.Providers[i].Strategy != StrategyFullRefetch {
			return nil, fmt.Errorf("provider %q: imap supports only %s", p.Name, StrategyFullRefetch)
		}
	}
	return f.Providers, nil
}

func defaultStrategy(kind string) string {
	if kind == KindIMAP {
		return StrategyFullRefetch
	}
	return StrategyCursorReplay
}

func (c *Config) providersFromEnv() []ProviderConfig {
	var list []ProviderConfig
	if c.GmailRefreshToken != "" {
		list = append(list, ProviderConfig{Name: KindGmail, Kind: KindGmail, Strategy: StrategyCursorReplay, Account: c.GmailAccount})
	}
	if c.OutlookRefreshToken != "" {
		list = append(list, ProviderConfig{Name: KindOutlook, Kind: KindOutlook, Strategy: StrategyCursorReplay})
	}
	if c.IMAPAddr != "" {
		list = append(list, ProviderConfig{Name: KindIMAP, Kind: KindIMAP, Strategy: StrategyFullRefetch, Account: c.IMAPUsername})
	}
	return list
}
