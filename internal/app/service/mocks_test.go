package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
	"github.com/petermyo/DecentralizeFileShare/internal/app/provider"
	"github.com/petermyo/DecentralizeFileShare/internal/app/repository"
)

type mockLinkRegistry struct {
	lookupFn      func(ctx context.Context, kind model.RecordKind, code string) (*model.Record, error)
	createFn      func(ctx context.Context, record *model.Record, ttl time.Duration) error
	putFn         func(ctx context.Context, record *model.Record) error
	deleteFn      func(ctx context.Context, kind model.RecordKind, code string) error
	listByOwnerFn func(ctx context.Context, ownerID string, kind model.RecordKind) ([]*model.Record, error)
}

func (m *mockLinkRegistry) Lookup(ctx context.Context, kind model.RecordKind, code string) (*model.Record, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, kind, code)
	}
	return nil, repository.ErrLinkNotFound
}

func (m *mockLinkRegistry) Create(ctx context.Context, record *model.Record, ttl time.Duration) error {
	if m.createFn != nil {
		return m.createFn(ctx, record, ttl)
	}
	return nil
}

func (m *mockLinkRegistry) Put(ctx context.Context, record *model.Record) error {
	if m.putFn != nil {
		return m.putFn(ctx, record)
	}
	return nil
}

func (m *mockLinkRegistry) Delete(ctx context.Context, kind model.RecordKind, code string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, kind, code)
	}
	return nil
}

func (m *mockLinkRegistry) ListByOwner(ctx context.Context, ownerID string, kind model.RecordKind) ([]*model.Record, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, ownerID, kind)
	}
	return nil, nil
}

// memoryVault is a goroutine-safe in-memory CredentialVault.
type memoryVault struct {
	mu      sync.Mutex
	entries map[string]model.CredentialEntry
	puts    int
	getErr  error
	putErr  error
}

func newMemoryVault(entries ...model.CredentialEntry) *memoryVault {
	v := &memoryVault{entries: make(map[string]model.CredentialEntry)}
	for _, e := range entries {
		v.entries[e.OwnerID] = e
	}
	return v
}

func (v *memoryVault) Get(_ context.Context, ownerID string) (*model.CredentialEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.getErr != nil {
		return nil, v.getErr
	}
	e, ok := v.entries[ownerID]
	if !ok {
		return nil, repository.ErrCredentialNotFound
	}
	return &e, nil
}

func (v *memoryVault) Put(_ context.Context, entry *model.CredentialEntry) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.putErr != nil {
		return v.putErr
	}
	v.entries[entry.OwnerID] = *entry
	v.puts++
	return nil
}

func (v *memoryVault) Delete(_ context.Context, ownerID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.entries, ownerID)
	return nil
}

type mockRefresher struct {
	refreshFn func(ctx context.Context, refreshToken string) (*provider.Token, error)
}

func (m *mockRefresher) Refresh(ctx context.Context, refreshToken string) (*provider.Token, error) {
	return m.refreshFn(ctx, refreshToken)
}

type mockContentProvider struct {
	metadataFn func(ctx context.Context, accessToken, fileID string) (*provider.ObjectMetadata, error)
	openFn     func(ctx context.Context, accessToken, fileID string) (*provider.ObjectStream, error)
	deleteFn   func(ctx context.Context, accessToken, fileID string) error
}

func (m *mockContentProvider) Delete(ctx context.Context, accessToken, fileID string) error {
	return m.deleteFn(ctx, accessToken, fileID)
}

func (m *mockContentProvider) Metadata(ctx context.Context, accessToken, fileID string) (*provider.ObjectMetadata, error) {
	return m.metadataFn(ctx, accessToken, fileID)
}

func (m *mockContentProvider) Open(ctx context.Context, accessToken, fileID string) (*provider.ObjectStream, error) {
	return m.openFn(ctx, accessToken, fileID)
}

type mockRemoteFiles struct {
	removeFn func(ctx context.Context, target StreamTarget) error
}

func (m *mockRemoteFiles) Remove(ctx context.Context, target StreamTarget) error {
	return m.removeFn(ctx, target)
}

type mockTokenSource struct {
	accessTokenFn func(ctx context.Context, ownerID string) (string, error)
}

func (m *mockTokenSource) AccessToken(ctx context.Context, ownerID string) (string, error) {
	return m.accessTokenFn(ctx, ownerID)
}

type mockAccessEventRepository struct {
	createFn       func(ctx context.Context, event *model.AccessEvent) error
	deleteBeforeFn func(ctx context.Context, before time.Time) (int64, error)
}

func (m *mockAccessEventRepository) Create(ctx context.Context, event *model.AccessEvent) error {
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
}

func (m *mockAccessEventRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	if m.deleteBeforeFn != nil {
		return m.deleteBeforeFn(ctx, before)
	}
	return 0, nil
}

type fakeJetStream struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeJetStream) PublishAsync(subj string, data []byte, _ ...nats.PubOpt) (nats.PubAckFuture, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return nil, nil
}

// trackingBody reports whether the proxy closed the upstream body.
type trackingBody struct {
	io.Reader
	closed bool
}

func newTrackingBody(s string) *trackingBody {
	return &trackingBody{Reader: strings.NewReader(s)}
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func strPtr(s string) *string { return &s }
