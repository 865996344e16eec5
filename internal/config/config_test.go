package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullYAML = `
dealership: Hilltop Motors
currency: EUR
labor_rate: "92.50"
storage_retries: 5

db:
  driver: mysql
  user: garage
  host: 10.0.0.5
  port: 3307
  database: motorlot_hilltop

notify:
  command: "notify-send 'Motorlot' '{{.Summary}}'"
  slack:
    bot_token: xoxb-test
    channel: C123
  discord:
    bot_token: disc-test
    channel: "987654"

reconcile:
  cron: "30 5 * * *"
  notify_anomalies: true
`

const minimalYAML = `
dealership: Corner Garage
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Dealership != "Hilltop Motors" {
		t.Errorf("Dealership = %q, want %q", cfg.Dealership, "Hilltop Motors")
	}
	if cfg.Currency != "EUR" {
		t.Errorf("Currency = %q, want %q", cfg.Currency, "EUR")
	}
	if got := cfg.LaborRateDecimal().StringFixed(2); got != "92.50" {
		t.Errorf("LaborRateDecimal() = %s, want 92.50", got)
	}
	if cfg.StorageRetries != 5 {
		t.Errorf("StorageRetries = %d, want 5", cfg.StorageRetries)
	}
	if cfg.DB.Driver != "mysql" {
		t.Errorf("DB.Driver = %q, want mysql", cfg.DB.Driver)
	}
	if cfg.DB.User != "garage" {
		t.Errorf("DB.User = %q, want garage", cfg.DB.User)
	}
	if cfg.DB.Host != "10.0.0.5" {
		t.Errorf("DB.Host = %q, want 10.0.0.5", cfg.DB.Host)
	}
	if cfg.DB.Port != 3307 {
		t.Errorf("DB.Port = %d, want 3307", cfg.DB.Port)
	}
	if cfg.DB.Database != "motorlot_hilltop" {
		t.Errorf("DB.Database = %q, want motorlot_hilltop", cfg.DB.Database)
	}
	if cfg.Notify.Slack.Channel != "C123" {
		t.Errorf("Notify.Slack.Channel = %q, want C123", cfg.Notify.Slack.Channel)
	}
	if cfg.Notify.Discord.Channel != "987654" {
		t.Errorf("Notify.Discord.Channel = %q, want 987654", cfg.Notify.Discord.Channel)
	}
	if cfg.Reconcile.Cron != "30 5 * * *" {
		t.Errorf("Reconcile.Cron = %q, want '30 5 * * *'", cfg.Reconcile.Cron)
	}
	if !cfg.Reconcile.NotifyAnomalies {
		t.Error("Reconcile.NotifyAnomalies = false, want true")
	}
}

func TestParse_MinimalDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", cfg.Currency)
	}
	if cfg.LaborRate != "0" {
		t.Errorf("LaborRate = %q, want 0", cfg.LaborRate)
	}
	if cfg.StorageRetries != 3 {
		t.Errorf("StorageRetries = %d, want 3", cfg.StorageRetries)
	}
	if cfg.DB.Driver != "sqlite" {
		t.Errorf("DB.Driver = %q, want sqlite", cfg.DB.Driver)
	}
	if cfg.DB.Path != "motorlot.db" {
		t.Errorf("DB.Path = %q, want motorlot.db", cfg.DB.Path)
	}
	if cfg.DB.Database != "motorlot_corner_garage" {
		t.Errorf("DB.Database = %q, want motorlot_corner_garage", cfg.DB.Database)
	}
	if cfg.Reconcile.Cron != "0 6 * * *" {
		t.Errorf("Reconcile.Cron = %q, want '0 6 * * *'", cfg.Reconcile.Cron)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing dealership",
			yaml:    "currency: USD\n",
			wantErr: "dealership is required",
		},
		{
			name:    "bad driver",
			yaml:    "dealership: X\ndb:\n  driver: postgres\n",
			wantErr: "must be mysql or sqlite",
		},
		{
			name:    "bad labor rate",
			yaml:    "dealership: X\nlabor_rate: \"lots\"\n",
			wantErr: "not a valid decimal",
		},
		{
			name:    "slack token without channel",
			yaml:    "dealership: X\nnotify:\n  slack:\n    bot_token: xoxb-1\n",
			wantErr: "notify.slack.channel is required",
		},
		{
			name:    "discord token without channel",
			yaml:    "dealership: X\nnotify:\n  discord:\n    bot_token: tok\n",
			wantErr: "notify.discord.channel is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("dealership: [unclosed"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want to contain %q", err, "config: parse")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "motorlot.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Dealership != "Corner Garage" {
		t.Errorf("Dealership = %q, want Corner Garage", cfg.Dealership)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err, "config: read")
	}
}
