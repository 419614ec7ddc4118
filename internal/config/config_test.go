package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	configContent := `
source:
  host: localhost
  port: 5432
  database: testdb
  user: testuser
  password: testpass

engine:
  data_dir: /tmp/data
  database: ORCLCDB
  checkpoint_interval_s: 60

materialize:
  owner_regex: "^HR$"
  table_regex: "^EMP$"

alerts:
  enabled: false
`

	tmpfile, err := os.CreateTemp("", "catalogshadow-test-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(configContent)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Source.Host != "localhost" {
		t.Errorf("expected host=localhost, got %s", cfg.Source.Host)
	}
	if cfg.Engine.Database != "ORCLCDB" {
		t.Errorf("expected engine.database=ORCLCDB, got %s", cfg.Engine.Database)
	}
	if cfg.Materialize.OwnerRegex != "^HR$" {
		t.Errorf("expected owner_regex=^HR$, got %s", cfg.Materialize.OwnerRegex)
	}
	if cfg.Engine.PollIntervalUs != 100000 {
		t.Errorf("expected default poll_interval_us=100000, got %d", cfg.Engine.PollIntervalUs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: Config{
				Engine: EngineConfig{Database: "ORCLCDB", DataDir: "/data"},
			},
			wantErr: false,
		},
		{
			name: "missing database name",
			config: Config{
				Engine: EngineConfig{DataDir: "/data"},
			},
			wantErr: true,
		},
		{
			name: "missing data dir",
			config: Config{
				Engine: EngineConfig{Database: "ORCLCDB"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	cfg := Config{Engine: EngineConfig{Database: "ORCLCDB", DataDir: "/data"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Engine.CheckpointIntervalS != 300 {
		t.Errorf("expected default checkpoint_interval_s=300, got %d", cfg.Engine.CheckpointIntervalS)
	}
	if cfg.Materialize.DefaultCharmap != 873 {
		t.Errorf("expected default charmap=873, got %d", cfg.Materialize.DefaultCharmap)
	}
}

func TestConnectionString(t *testing.T) {
	src := SourceConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "testdb",
		User:     "testuser",
		Password: "testpass",
	}

	connStr := src.ConnectionString()
	expected := "host=localhost port=5432 dbname=testdb user=testuser password=testpass sslmode=disable"

	if connStr != expected {
		t.Errorf("ConnectionString() = %v, want %v", connStr, expected)
	}
}
