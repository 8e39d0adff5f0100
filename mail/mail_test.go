package mail

import (
	"context"
	"errors"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Host != "smtp.gmail.com" {
		t.Errorf("expected Host 'smtp.gmail.com', got %q", cfg.Host)
	}
	if cfg.Port != 587 {
		t.Errorf("expected Port 587, got %d", cfg.Port)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantErr  bool
		wantFrom string
	}{
		{"missing username", Config{Password: "secret"}, true, ""},
		{"missing password", Config{Username: "shop@example.com"}, true, ""},
		{"from defaults to username", Config{Username: "shop@example.com", Password: "secret"}, false, "shop@example.com"},
		{"explicit from", Config{Username: "shop@example.com", Password: "secret", From: "noreply@example.com"}, false, "noreply@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.validate()
			if tt.wantErr {
				if !errors.Is(err, ErrMissingCredentials) {
					t.Errorf("expected ErrMissingCredentials, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.From != tt.wantFrom {
				t.Errorf("expected From %q, got %q", tt.wantFrom, cfg.From)
			}
			if cfg.Host == "" || cfg.Port == 0 || cfg.Timeout == 0 {
				t.Errorf("expected defaults to be filled, got %+v", cfg)
			}
		})
	}
}

func TestNewSMTPSender_MissingCredentials(t *testing.T) {
	_, err := NewSMTPSender(Config{}, nil)
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestSMTPSender_Build(t *testing.T) {
	s, err := NewSMTPSender(Config{Username: "shop@example.com", Password: "secret"}, nil)
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}

	if _, err := s.build(Message{To: "someone@example.com", Subject: "hi", Text: "hello"}); err != nil {
		t.Errorf("build: %v", err)
	}
	if _, err := s.build(Message{To: "not an address", Subject: "hi"}); err == nil {
		t.Error("expected error for invalid recipient")
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	msg := Message{To: "someone@example.com", Subject: "Email Verification"}

	if err := r.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := r.Messages(); len(got) != 1 || got[0].To != msg.To {
		t.Errorf("unexpected messages %+v", got)
	}

	r.Err = errors.New("smtp down")
	if err := r.Send(context.Background(), msg); err == nil {
		t.Error("expected error while Err is set")
	}
	if got := r.Messages(); len(got) != 1 {
		t.Errorf("expected failed send not to be recorded, got %d messages", len(got))
	}
}
