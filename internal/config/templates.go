package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Stock Tracker Configuration

[monitor]
# How often prices are sampled
interval = "300s"
# Local time after which the daily report is sent (once per day)
daily_report_time = "17:00"
# IANA timezone for the daily report, or "Local"
timezone = "Local"
# Upper bound for a single market data call
call_timeout = "10s"
# Symbols evaluated in parallel per tick (1 = sequential)
concurrency = 1
# Pending alert events before publishing is refused
event_buffer = 64

[[symbols]]
symbol = "NVDA"
upper = 130.0
lower = 110.0
pct_trigger = 2.0

[[symbols]]
symbol = "SPY"
upper = 550.0
lower = 520.0
pct_trigger = 1.5

[[symbols]]
symbol = "AAPL"
upper = 200.0
lower = 160.0
pct_trigger = 2.0

[[symbols]]
symbol = "TSLA"
upper = 300.0
lower = 220.0
pct_trigger = 3.0

[[symbols]]
symbol = "AMZN"
upper = 190.0
lower = 160.0
pct_trigger = 2.5

[chart]
period = "6mo"
interval = "1d"
ma_windows = [20, 50]

[data]
# Market data provider: yahoo, kite, polygon
provider = "yahoo"
# Cache daily history in the SQLite store (requires store.enabled)
cache = false
# Exchange prefix used by kite
exchange = "NSE"

[store]
enabled = false
# Record every emitted alert event
journal_alerts = false

[notifications]
enabled = true
# all, alerts_only or reports_only
level = "all"
# Also print alerts to the terminal
console = false

[notifications.telegram]
enabled = true
bot_token = ""
chat_id = ""

[notifications.webhook]
enabled = false
url = ""

[bot]
# Answer /report and /chart in the Telegram chat
enabled = true
poll_timeout = "30s"

[logging]
level = "info"
console = true
file = true
`

const credentialsTemplate = `# Stock Tracker Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[kite]
api_key = ""
access_token = ""

[polygon]
api_key = ""

[telegram]
bot_token = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}

	return nil
}
