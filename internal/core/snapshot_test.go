package core

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/BKHilton/Ember/pkg/domain"
)

func TestSnapshotOmitsSecrets(t *testing.T) {
	svc := NewInMemoryService(WithClock(newTestClock(baseTime)))
	ctx := context.Background()
	church, _, err := svc.RegisterChurch(ctx, RegisterChurchInput{
		Name:     "Grace",
		Director: DirectorInput{Name: "Dana", Email: "dana@example.org", Password: "correct horse"},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.UpdateSMTPConfig(ctx, church.ID, &domain.SMTPConfig{Host: "smtp.example.org", From: "office@example.org", Password: "smtp-secret"}); err != nil {
		t.Fatalf("smtp: %v", err)
	}

	snap, err := svc.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Churches) != 1 || len(snap.Churches[0].Campuses) != 1 || len(snap.Users) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, secret := range []string{"smtp-secret", "password_hash", "$2a$"} {
		if strings.Contains(string(raw), secret) {
			t.Fatalf("snapshot leaked %q", secret)
		}
	}
	if !snap.GeneratedAt.Equal(baseTime) {
		t.Fatalf("expected generation time from the clock, got %v", snap.GeneratedAt)
	}
}
