package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestRecord_JSONEnvelope(t *testing.T) {
	pass := "abc123"
	rec := NewLinkRecord(&LinkRecord{
		Code:         "xy12ab",
		RemoteFileID: "drive-1",
		DisplayName:  "report.pdf",
		OwnerID:      "owner-1",
		Passcode:     &pass,
	})

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Record
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Kind != KindLink || decoded.Link == nil {
		t.Fatalf("expected link record, got %+v", decoded)
	}
	if decoded.Passcode() != "abc123" {
		t.Fatalf("passcode lost: %q", decoded.Passcode())
	}
}

func TestRecord_RejectsMismatchedKind(t *testing.T) {
	cases := map[string]string{
		"list kind with link body": `{"kind":"list","link":{"code":"a","owner_id":"o","remote_file_id":"f"}}`,
		"unknown kind":             `{"kind":"folder"}`,
		"link missing owner":       `{"kind":"link","link":{"code":"a","remote_file_id":"f"}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			var rec Record
			err := json.Unmarshal([]byte(payload), &rec)
			if !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("expected ErrInvalidRecord, got %v", err)
			}
		})
	}
}

func TestCredentialEntry_FreshAt(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := &CredentialEntry{AccessToken: "tok", IssuedAt: issued, ValidForSeconds: 3600}
	margin := 300 * time.Second

	if !entry.FreshAt(issued.Add(3299*time.Second), margin) {
		t.Fatal("expected token to be fresh just before the margin")
	}
	if entry.FreshAt(issued.Add(3300*time.Second), margin) {
		t.Fatal("expected token to be stale once the margin is reached")
	}
	if (&CredentialEntry{IssuedAt: issued, ValidForSeconds: 3600}).FreshAt(issued, margin) {
		t.Fatal("an empty access token is never fresh")
	}
}
