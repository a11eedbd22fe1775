package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"ADDR", "DB_DRIVER", "SHAPES_SOURCE", "MUNICIPALITY", "SESSION_IDLE_TTL", "MAP_ZOOM"} {
		t.Setenv(k, "")
	}
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != ":8080" {
		t.Errorf("Addr = %q", c.Server.Addr)
	}
	if c.Shapes.Municipality != "Tilburg" {
		t.Errorf("Municipality = %q", c.Shapes.Municipality)
	}
	if c.Map.Zoom != 11.5 {
		t.Errorf("Zoom = %v", c.Map.Zoom)
	}
	if c.Session.IdleTTL != 2*time.Hour {
		t.Errorf("IdleTTL = %v", c.Session.IdleTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SHAPES_SOURCE", "sql")
	t.Setenv("SESSION_IDLE_TTL", "15m")
	t.Setenv("REDIS_ENABLE", "true")
	t.Setenv("PG_MAX_OPEN_CONNS", "not-a-number")
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Database.Driver != "sqlite" || c.Shapes.Source != "sql" {
		t.Errorf("driver/source = %q/%q", c.Database.Driver, c.Shapes.Source)
	}
	if c.Session.IdleTTL != 15*time.Minute {
		t.Errorf("IdleTTL = %v", c.Session.IdleTTL)
	}
	if !c.Redis.Enable {
		t.Error("Redis.Enable = false")
	}
	if c.Database.MaxOpenConns != 20 {
		t.Errorf("MaxOpenConns = %d, want default on parse failure", c.Database.MaxOpenConns)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		source  string
		wantErr bool
	}{
		{"dir without db", "none", "dir", false},
		{"sql with sqlite", "sqlite", "sql", false},
		{"sql without db", "none", "sql", true},
		{"bad driver", "mysql", "dir", true},
		{"bad source", "none", "s3", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{
				Database: DatabaseConfig{Driver: tt.driver},
				Shapes:   ShapesConfig{Source: tt.source},
				Session:  SessionConfig{IdleTTL: time.Minute},
			}
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", Name: "db", SSLMode: "disable"}
	if got, want := d.PostgresDSN(), "postgres://u:p@h:5432/db?sslmode=disable"; got != want {
		t.Errorf("PostgresDSN() = %q, want %q", got, want)
	}
}
