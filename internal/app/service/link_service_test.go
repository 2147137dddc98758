package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
	"github.com/petermyo/DecentralizeFileShare/internal/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRetention = LinkServiceConfig{FileRetention: 30 * 24 * time.Hour, ListRetention: 90 * 24 * time.Hour}

func ownedLink(code, owner string) *model.Record {
	return model.NewLinkRecord(&model.LinkRecord{
		Code:         code,
		RemoteFileID: "drive-" + code,
		DisplayName:  code + ".txt",
		OwnerID:      owner,
		SizeBytes:    10,
	})
}

func TestLinkService_FinalizeLink(t *testing.T) {
	var stored *model.Record
	repo := &mockLinkRegistry{
		createFn: func(ctx context.Context, record *model.Record, ttl time.Duration) error {
			if ttl != testRetention.FileRetention {
				t.Fatalf("expected file retention, got %s", ttl)
			}
			stored = record
			return nil
		},
	}

	svc := NewLinkService(repo, newMemoryVault(), nil, nil, testRetention, nil)
	link, err := svc.FinalizeLink(context.Background(), FinalizeLinkInput{
		OwnerID:      "owner-1",
		RemoteFileID: "drive-1",
		DisplayName:  "notes.txt",
		SizeBytes:    128,
		Passcode:     strPtr(""),
	})
	if err != nil {
		t.Fatalf("FinalizeLink returned error: %v", err)
	}
	if len(link.Code) != 6 {
		t.Fatalf("expected a 6 character code, got %q", link.Code)
	}
	if link.Passcode != nil {
		t.Fatalf("empty passcode should be stored as public")
	}
	if stored == nil || stored.Code() != link.Code {
		t.Fatalf("expected record to be created under %q", link.Code)
	}
}

func TestLinkService_FinalizeLink_RetriesOnCollision(t *testing.T) {
	var attempts []string
	repo := &mockLinkRegistry{
		createFn: func(ctx context.Context, record *model.Record, ttl time.Duration) error {
			attempts = append(attempts, record.Code())
			if len(attempts) < 3 {
				return repository.ErrCodeTaken
			}
			return nil
		},
	}
	gen := NewCodeGenerator(6)
	svc := NewLinkService(repo, newMemoryVault(), nil, gen, testRetention, nil)

	link, err := svc.FinalizeLink(context.Background(), FinalizeLinkInput{OwnerID: "o", RemoteFileID: "f"})
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.Equal(t, attempts[2], link.Code)
	assert.True(t, gen.mightExist(attempts[0]), "colliding codes are remembered")
}

func TestLinkService_FinalizeLink_GivesUp(t *testing.T) {
	repo := &mockLinkRegistry{
		createFn: func(context.Context, *model.Record, time.Duration) error { return repository.ErrCodeTaken },
	}
	svc := NewLinkService(repo, newMemoryVault(), nil, nil, testRetention, nil)

	_, err := svc.FinalizeLink(context.Background(), FinalizeLinkInput{OwnerID: "o", RemoteFileID: "f"})
	assert.Error(t, err)
}

func TestLinkService_FinalizeLink_InvalidInput(t *testing.T) {
	svc := NewLinkService(&mockLinkRegistry{}, newMemoryVault(), nil, nil, testRetention, nil)
	_, err := svc.FinalizeLink(context.Background(), FinalizeLinkInput{OwnerID: "o"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLinkService_UpdateLinkProtection(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	repo := &mockLinkRegistry{
		lookupFn: func(ctx context.Context, kind model.RecordKind, code string) (*model.Record, error) {
			return ownedLink(code, "owner-1"), nil
		},
		putFn: func(ctx context.Context, record *model.Record) error {
			if record.Passcode() != "abc123" {
				t.Fatalf("expected updated passcode, got %q", record.Passcode())
			}
			if record.ExpiresAt() == nil || !record.ExpiresAt().Equal(expires) {
				t.Fatalf("expected expiresAt to be set")
			}
			return nil
		},
	}

	svc := NewLinkService(repo, newMemoryVault(), nil, nil, testRetention, nil)
	_, err := svc.UpdateLinkProtection(context.Background(), "abc", "owner-1", ProtectionInput{
		Passcode:  strPtr("abc123"),
		ExpiresAt: &expires,
	})
	if err != nil {
		t.Fatalf("UpdateLinkProtection error: %v", err)
	}
}

func TestLinkService_UpdateLinkProtection_Errors(t *testing.T) {
	repo := &mockLinkRegistry{
		lookupFn: func(ctx context.Context, kind model.RecordKind, code string) (*model.Record, error) {
			if code == "missing" {
				return nil, repository.ErrLinkNotFound
			}
			return ownedLink(code, "owner-1"), nil
		},
		putFn: func(context.Context, *model.Record) error {
			t.Fatal("put must not run")
			return nil
		},
	}
	svc := NewLinkService(repo, newMemoryVault(), nil, nil, testRetention, nil)

	_, err := svc.UpdateLinkProtection(context.Background(), "abc", "intruder", ProtectionInput{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateLinkProtection(context.Background(), "missing", "owner-1", ProtectionInput{})
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

func TestLinkService_DeleteLink(t *testing.T) {
	var deleted []string
	repo := &mockLinkRegistry{
		lookupFn: func(ctx context.Context, kind model.RecordKind, code string) (*model.Record, error) {
			if code == "gone" {
				return nil, repository.ErrLinkNotFound
			}
			return ownedLink(code, "owner-1"), nil
		},
		deleteFn: func(ctx context.Context, kind model.RecordKind, code string) error {
			deleted = append(deleted, code)
			return nil
		},
	}
	svc := NewLinkService(repo, newMemoryVault(), nil, nil, testRetention, nil)

	require.NoError(t, svc.DeleteLink(context.Background(), "mine", "owner-1"))
	require.NoError(t, svc.DeleteLink(context.Background(), "gone", "owner-1"))
	assert.ErrorIs(t, svc.DeleteLink(context.Background(), "mine", "intruder"), ErrForbidden)
	assert.Equal(t, []string{"mine"}, deleted)
}

func TestLinkService_DeleteLink_RemovesRemoteFileFirst(t *testing.T) {
	var calls []string
	repo := &mockLinkRegistry{
		lookupFn: func(ctx context.Context, kind model.RecordKind, code string) (*model.Record, error) {
			return ownedLink(code, "owner-1"), nil
		},
		deleteFn: func(ctx context.Context, kind model.RecordKind, code string) error {
			calls = append(calls, "registry:"+code)
			return nil
		},
	}
	files := &mockRemoteFiles{
		removeFn: func(ctx context.Context, target StreamTarget) error {
			assert.Equal(t, "owner-1", target.OwnerID)
			calls = append(calls, "remote:"+target.RemoteFileID)
			return nil
		},
	}
	svc := NewLinkService(repo, newMemoryVault(), files, nil, testRetention, nil)

	require.NoError(t, svc.DeleteLink(context.Background(), "mine", "owner-1"))
	assert.Equal(t, []string{"remote:drive-mine", "registry:mine"}, calls)

	calls = nil
	assert.ErrorIs(t, svc.DeleteLink(context.Background(), "mine", "intruder"), ErrForbidden)
	assert.Empty(t, calls, "a foreign owner never reaches the remote file")
}

func TestLinkService_DeleteLink_KeepsRecordWhenRemoteFails(t *testing.T) {
	for _, remoteErr := range []error{ErrOwnerAccessRevoked, ErrProviderUnavailable} {
		deleted := false
		repo := &mockLinkRegistry{
			lookupFn: func(ctx context.Context, kind model.RecordKind, code string) (*model.Record, error) {
				return ownedLink(code, "owner-1"), nil
			},
			deleteFn: func(ctx context.Context, kind model.RecordKind, code string) error {
				deleted = true
				return nil
			},
		}
		files := &mockRemoteFiles{
			removeFn: func(context.Context, StreamTarget) error { return fmt.Errorf("remove: %w", remoteErr) },
		}
		svc := NewLinkService(repo, newMemoryVault(), files, nil, testRetention, nil)

		err := svc.DeleteLink(context.Background(), "mine", "owner-1")
		assert.ErrorIs(t, err, remoteErr)
		assert.False(t, deleted, "record stays so the owner can retry")
	}
}

func TestLinkService_DeleteList_LeavesRemoteFilesAlone(t *testing.T) {
	repo := &mockLinkRegistry{
		lookupFn: func(ctx context.Context, kind model.RecordKind, code string) (*model.Record, error) {
			return model.NewListRecord(&model.ListRecord{Code: code, OwnerID: "owner-1"}), nil
		},
	}
	files := &mockRemoteFiles{
		removeFn: func(context.Context, StreamTarget) error {
			t.Fatal("list deletion must not remove member files")
			return nil
		},
	}
	svc := NewLinkService(repo, newMemoryVault(), files, nil, testRetention, nil)

	require.NoError(t, svc.DeleteList(context.Background(), "lst001", "owner-1"))
}

func TestLinkService_CreateList(t *testing.T) {
	var created *model.ListRecord
	repo := &mockLinkRegistry{
		lookupFn: func(ctx context.Context, kind model.RecordKind, code string) (*model.Record, error) {
			rec := ownedLink(code, "owner-1")
			rec.Link.Passcode = strPtr("member-secret")
			return rec, nil
		},
		createFn: func(ctx context.Context, record *model.Record, ttl time.Duration) error {
			assert.Equal(t, model.KindList, record.Kind)
			assert.Equal(t, testRetention.ListRetention, ttl)
			created = record.List
			return nil
		},
	}
	svc := NewLinkService(repo, newMemoryVault(), nil, nil, testRetention, nil)

	list, err := svc.CreateList(context.Background(), CreateListInput{
		OwnerID:   "owner-1",
		FileCodes: []string{"aaa111", "bbb222", "aaa111"},
		Passcode:  strPtr("team"),
	})
	require.NoError(t, err)
	require.Same(t, created, list)
	require.Len(t, list.Files, 2)
	assert.Equal(t, "aaa111", list.Files[0].Code)
	assert.Equal(t, "drive-bbb222", list.Files[1].RemoteFileID)
	assert.Equal(t, "team", *list.Passcode)
}

func TestLinkService_CreateList_Errors(t *testing.T) {
	repo := &mockLinkRegistry{
		lookupFn: func(ctx context.Context, kind model.RecordKind, code string) (*model.Record, error) {
			switch code {
			case "foreign":
				return ownedLink(code, "someone-else"), nil
			case "down":
				return nil, fmt.Errorf("%w: timeout", repository.ErrUnavailable)
			}
			return nil, repository.ErrLinkNotFound
		},
	}
	svc := NewLinkService(repo, newMemoryVault(), nil, nil, testRetention, nil)
	ctx := context.Background()

	_, err := svc.CreateList(ctx, CreateListInput{OwnerID: "owner-1"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateList(ctx, CreateListInput{OwnerID: "owner-1", FileCodes: []string{"foreign"}})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.CreateList(ctx, CreateListInput{OwnerID: "owner-1", FileCodes: []string{"unknown"}})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.CreateList(ctx, CreateListInput{OwnerID: "owner-1", FileCodes: []string{"down"}})
	assert.ErrorIs(t, err, ErrRegistryUnavailable)
}

func TestLinkService_Resolve(t *testing.T) {
	repo := &mockLinkRegistry{
		lookupFn: func(ctx context.Context, kind model.RecordKind, code string) (*model.Record, error) {
			switch code {
			case "xy12ab":
				return ownedLink(code, "owner-1"), nil
			case "outage":
				return nil, fmt.Errorf("%w: dial tcp", repository.ErrUnavailable)
			}
			return nil, repository.ErrLinkNotFound
		},
	}
	svc := NewLinkService(repo, newMemoryVault(), nil, nil, testRetention, nil)
	ctx := context.Background()

	rec, err := svc.Resolve(ctx, model.KindLink, "xy12ab")
	require.NoError(t, err)
	assert.Equal(t, "xy12ab", rec.Code())

	rec, err = svc.Resolve(ctx, model.KindLink, "zzzzzz")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = svc.Resolve(ctx, model.KindLink, "outage")
	assert.ErrorIs(t, err, ErrRegistryUnavailable)
}

func TestLinkService_ListLinks(t *testing.T) {
	repo := &mockLinkRegistry{
		listByOwnerFn: func(ctx context.Context, ownerID string, kind model.RecordKind) ([]*model.Record, error) {
			return []*model.Record{ownedLink("a", ownerID), ownedLink("b", ownerID)}, nil
		},
	}
	svc := NewLinkService(repo, newMemoryVault(), nil, nil, testRetention, nil)

	list, err := svc.ListLinks(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("ListLinks error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 links, got %d", len(list))
	}
}

func TestLinkService_RevokeOwner(t *testing.T) {
	vault := newMemoryVault(model.CredentialEntry{OwnerID: "owner-1", AccessToken: "a"})
	svc := NewLinkService(&mockLinkRegistry{}, vault, nil, nil, testRetention, nil)

	require.NoError(t, svc.RevokeOwner(context.Background(), "owner-1"))
	_, err := vault.Get(context.Background(), "owner-1")
	if !errors.Is(err, repository.ErrCredentialNotFound) {
		t.Fatalf("expected credential to be gone, got %v", err)
	}
}
