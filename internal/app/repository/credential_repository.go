package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
	"github.com/redis/go-redis/v9"
)

// ErrCredentialNotFound signals that no delegated credential is stored for an owner.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialVault persists owners' delegated storage credentials. It is kept
// apart from LinkRegistry so it can move to a dedicated secrets store.
type CredentialVault interface {
	Get(ctx context.Context, ownerID string) (*model.CredentialEntry, error)
	Put(ctx context.Context, entry *model.CredentialEntry) error
	Delete(ctx context.Context, ownerID string) error
}

type credentialVault struct {
	client *redis.Client
}

// NewCredentialVault returns a Redis-backed CredentialVault.
func NewCredentialVault(client *redis.Client) CredentialVault {
	return &credentialVault{client: client}
}

func (v *credentialVault) Get(ctx context.Context, ownerID string) (*model.CredentialEntry, error) {
	val, err := v.client.Get(ctx, credentialKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get credential %s: %v", ErrUnavailable, ownerID, err)
	}

	var entry model.CredentialEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("decode credential %s: %w", ownerID, err)
	}
	return &entry, nil
}

func (v *credentialVault) Put(ctx context.Context, entry *model.CredentialEntry) error {
	if entry.OwnerID == "" {
		return errors.New("credential entry has no owner")
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode credential %s: %w", entry.OwnerID, err)
	}
	if err := v.client.Set(ctx, credentialKey(entry.OwnerID), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: put credential %s: %v", ErrUnavailable, entry.OwnerID, err)
	}
	return nil
}

func (v *credentialVault) Delete(ctx context.Context, ownerID string) error {
	if err := v.client.Del(ctx, credentialKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("%w: delete credential %s: %v", ErrUnavailable, ownerID, err)
	}
	return nil
}

func credentialKey(ownerID string) string {
	return "cred:" + ownerID
}
