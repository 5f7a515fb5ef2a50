package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviders(t *testing.T) {
	data := []byte(`
providers:
  - name: work-gmail
    kind: gmail
    account: me@example.com
    poll_interval: 10m
  - name: office
    kind: outlook
    strategy: full_refetch
    fetch_count: 30
  - name: legacy
    kind: imap
`)
	list, err := ParseProviders(data)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, StrategyCursorReplay, list[0].Strategy)
	assert.Equal(t, 10*time.Minute, list[0].PollInterval)
	assert.Equal(t, "me@example.com", list[0].Account)
	assert.Equal(t, StrategyFullRefetch, list[1].Strategy)
	assert.Equal(t, 30, list[1].FetchCount)
	assert.Equal(t, StrategyFullRefetch, list[2].Strategy)
}

func TestParseProvidersRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing name":      "providers:\n  - kind: gmail\n",
		"unknown kind":      "providers:\n  - name: x\n    kind: pop3\n",
		"duplicate":         "providers:\n  - name: x\n    kind: gmail\n  - name: x\n    kind: outlook\n",
		"bad strategy":      "providers:\n  - name: x\n    kind: gmail\n    strategy: magic\n",
		"imap cursor reply": "providers:\n  - name: x\n    kind: imap\n    strategy: cursor_replay\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProviders([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestProvidersDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers:\n  - name: g\n    kind: gmail\n"), 0o600))

	cfg := &Config{ProvidersFile: path, DefaultFetchCount: 20, DefaultPollInterval: 5 * time.Minute}
	list, err := cfg.Providers()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 20, list[0].FetchCount)
	assert.Equal(t, 5*time.Minute, list[0].PollInterval)
}

func TestProvidersFromEnv(t *testing.T) {
	cfg := &Config{
		GmailRefreshToken: "rt",
		GmailAccount:      "me@example.com",
		IMAPAddr:          "imap.example.com:993",
		IMAPUsername:      "me",
		DefaultFetchCount: 20,
	}
	list, err := cfg.Providers()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, KindGmail, list[0].Name)
	assert.Equal(t, KindIMAP, list[1].Name)
	assert.Equal(t, StrategyFullRefetch, list[1].Strategy)
}

func TestGetDurationFallsBack(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "not-a-duration")
	assert.Equal(t, 20*time.Second, getDuration("FETCH_TIMEOUT", 20*time.Second))

	t.Setenv("FETCH_TIMEOUT", "3s")
	assert.Equal(t, 3*time.Second, getDuration("FETCH_TIMEOUT", 20*time.Second))
}

func TestGmailWatchTopic(t *testing.T) {
	cfg := &Config{GoogleProjectID: "proj", GooglePubSubTopic: "gmail-updates"}
	assert.Equal(t, "projects/proj/topics/gmail-updates", cfg.GmailWatchTopic())
	assert.Equal(t, "gmail-updates", cfg.PubSubTopicID())

	cfg = &Config{GooglePubSubTopic: "projects/other/topics/t"}
	assert.Equal(t, "projects/other/topics/t", cfg.GmailWatchTopic())
	assert.Equal(t, "t", cfg.PubSubTopicID())

	cfg = &Config{GooglePubSubTopic: "t"}
	assert.Empty(t, cfg.GmailWatchTopic())
}
