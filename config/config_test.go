package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"JWT_PRIVATE_KEY": "secret",
		"MAIL_USER":       "shop@example.com",
		"MAIL_PASSWORD":   "app-password",
	}
}

func TestParse_Defaults(t *testing.T) {
	c, err := parse(lookupFrom(baseEnv()))
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}

	if c.Addr() != ":3000" {
		t.Errorf("Addr() = %q, want :3000", c.Addr())
	}
	if c.StoreDriver != DriverMongo {
		t.Errorf("StoreDriver = %q, want %q", c.StoreDriver, DriverMongo)
	}
	if c.MailPort != 587 {
		t.Errorf("MailPort = %d, want 587", c.MailPort)
	}
	if c.MailFrom != "shop@example.com" {
		t.Errorf("MailFrom = %q, want MAIL_USER", c.MailFrom)
	}
	if c.RoutePolicyStrict {
		t.Error("RoutePolicyStrict = true, want false")
	}
	if c.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", c.LogLevel)
	}
}

func TestParse_Overrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "8080"
	env["HOST"] = "127.0.0.1"
	env["STORE_DRIVER"] = "DynamoDB"
	env["MAIL_PORT"] = "465"
	env["MAIL_FROM"] = "noreply@example.com"
	env["ROUTE_POLICY_STRICT"] = "true"
	env["LOG_LEVEL"] = "debug"
	env["LOG_FORMAT"] = "text"

	c, err := parse(lookupFrom(env))
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}

	if c.Addr() != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q", c.Addr())
	}
	if c.StoreDriver != DriverDynamoDB {
		t.Errorf("StoreDriver = %q", c.StoreDriver)
	}
	if c.MailPort != 465 || c.MailFrom != "noreply@example.com" {
		t.Errorf("mail = %d %q", c.MailPort, c.MailFrom)
	}
	if !c.RoutePolicyStrict {
		t.Error("RoutePolicyStrict = false, want true")
	}
	if c.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want DEBUG", c.LogLevel)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(env map[string]string)
		wantErr error
	}{
		{"bad driver", func(env map[string]string) { env["STORE_DRIVER"] = "sqlite" }, ErrInvalidValue},
		{"bad mail port", func(env map[string]string) { env["MAIL_PORT"] = "smtp" }, ErrInvalidValue},
		{"bad strict flag", func(env map[string]string) { env["ROUTE_POLICY_STRICT"] = "maybe" }, ErrInvalidValue},
		{"bad log level", func(env map[string]string) { env["LOG_LEVEL"] = "loud" }, ErrInvalidValue},
		{"bad log format", func(env map[string]string) { env["LOG_FORMAT"] = "xml" }, ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			tt.modify(env)
			_, err := parse(lookupFrom(env))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequireSecrets(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(env map[string]string)
		wantErr error
	}{
		{"complete", func(env map[string]string) {}, nil},
		{"missing jwt key", func(env map[string]string) { delete(env, "JWT_PRIVATE_KEY") }, ErrMissingJWTKey},
		{"missing mail user", func(env map[string]string) { delete(env, "MAIL_USER") }, ErrMissingMailCredentials},
		{"blank mail password", func(env map[string]string) { env["MAIL_PASSWORD"] = "  " }, ErrMissingMailCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			tt.modify(env)
			c, err := parse(lookupFrom(env))
			if err != nil {
				t.Fatalf("parse() error = %v", err)
			}
			if err := c.RequireSecrets(); !errors.Is(err, tt.wantErr) {
				t.Errorf("RequireSecrets() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "JWT_PRIVATE_KEY=from-file\nMAIL_USER=file@example.com\nMAIL_PASSWORD=pw\nPORT=4000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	// Set values win over the file; the file fills the rest.
	t.Setenv("PORT", "5000")
	for _, key := range []string{"JWT_PRIVATE_KEY", "MAIL_USER", "MAIL_PASSWORD"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Port != "5000" {
		t.Errorf("Port = %q, want 5000", c.Port)
	}
	if c.JWTPrivateKey != "from-file" {
		t.Errorf("JWTPrivateKey = %q, want from-file", c.JWTPrivateKey)
	}
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	t.Setenv("JWT_PRIVATE_KEY", "secret")
	t.Setenv("MAIL_USER", "shop@example.com")
	t.Setenv("MAIL_PASSWORD", "pw")

	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("Load() error = %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	c := &Config{LogFormat: "json", LogLevel: slog.LevelWarn}
	logger := c.NewLogger(&buf)

	logger.Info("dropped")
	logger.Warn("kept", "key", "value")

	if bytes.Contains(buf.Bytes(), []byte("dropped")) {
		t.Error("info record written at warn level")
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"key":"value"`)) {
		t.Errorf("output = %s, want JSON record", buf.String())
	}
}
