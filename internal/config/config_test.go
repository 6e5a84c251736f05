package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Fatalf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Production {
		t.Fatal("Production should default to false")
	}
	if cfg.ResultsDir != "temp_results" {
		t.Fatalf("ResultsDir = %q, want temp_results", cfg.ResultsDir)
	}
	if cfg.MaxConcurrentTasks != 2 {
		t.Fatalf("MaxConcurrentTasks = %d, want 2", cfg.MaxConcurrentTasks)
	}
	if cfg.AffiliatorCountry != "MX" {
		t.Fatalf("AffiliatorCountry = %q, want MX", cfg.AffiliatorCountry)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PRODUCTION", "true")
	t.Setenv("CHROME_BIN", "/opt/chrome/chrome")
	t.Setenv("RESULTS_DIR", "/tmp/results")
	t.Setenv("MAX_CONCURRENT_TASKS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIPort != 9090 {
		t.Fatalf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if !cfg.Production {
		t.Fatal("Production should be true")
	}
	if cfg.ChromeBin != "/opt/chrome/chrome" {
		t.Fatalf("ChromeBin = %q", cfg.ChromeBin)
	}
	if cfg.ResultsDir != "/tmp/results" {
		t.Fatalf("ResultsDir = %q", cfg.ResultsDir)
	}
	if cfg.MaxConcurrentTasks != 5 {
		t.Fatalf("MaxConcurrentTasks = %d, want 5", cfg.MaxConcurrentTasks)
	}
}

func TestLoad_ConcurrencyFloor(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_TASKS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxConcurrentTasks != 1 {
		t.Fatalf("MaxConcurrentTasks = %d, want floor of 1", cfg.MaxConcurrentTasks)
	}
}
