package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
	"github.com/petermyo/DecentralizeFileShare/internal/app/repository"
	"go.uber.org/zap"
)

const maxCodeAttempts = 5

// LinkService defines behaviour-level operations on short links and lists.
type LinkService interface {
	Resolve(ctx context.Context, kind model.RecordKind, code string) (*model.Record, error)

	FinalizeLink(ctx context.Context, input FinalizeLinkInput) (*model.LinkRecord, error)
	UpdateLinkProtection(ctx context.Context, code, ownerID string, input ProtectionInput) (*model.LinkRecord, error)
	DeleteLink(ctx context.Context, code, ownerID string) error
	ListLinks(ctx context.Context, ownerID string) ([]*model.LinkRecord, error)

	CreateList(ctx context.Context, input CreateListInput) (*model.ListRecord, error)
	UpdateListProtection(ctx context.Context, code, ownerID string, input ProtectionInput) (*model.ListRecord, error)
	DeleteList(ctx context.Context, code, ownerID string) error
	ListLists(ctx context.Context, ownerID string) ([]*model.ListRecord, error)

	AdminDeleteLink(ctx context.Context, code string) error
	AdminDeleteList(ctx context.Context, code string) error
	RevokeOwner(ctx context.Context, ownerID string) error
}

// RemoteFiles removes the stored object behind a link.
type RemoteFiles interface {
	Remove(ctx context.Context, target StreamTarget) error
}

// LinkServiceConfig holds registry retention periods.
type LinkServiceConfig struct {
	FileRetention time.Duration
	ListRetention time.Duration
}

type linkService struct {
	registry repository.LinkRegistry
	vault    repository.CredentialVault
	files    RemoteFiles
	codes    *CodeGenerator
	cfg      LinkServiceConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewLinkService returns a service implementation backed by the given stores.
// With a nil files, deleting a link leaves the remote object in place.
func NewLinkService(registry repository.LinkRegistry, vault repository.CredentialVault, files RemoteFiles, codes *CodeGenerator, cfg LinkServiceConfig, logger *zap.Logger) LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if codes == nil {
		codes = NewCodeGenerator(defaultCodeLength)
	}
	return &linkService{
		registry: registry,
		vault:    vault,
		files:    files,
		codes:    codes,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// FinalizeLinkInput captures data required to publish an uploaded file.
type FinalizeLinkInput struct {
	OwnerID      string
	RemoteFileID string
	DisplayName  string
	SizeBytes    int64
	Passcode     *string
	ExpiresAt    *time.Time
}

// ProtectionInput replaces a record's passcode and expiry. A nil or empty
// passcode makes the record public; a nil expiry removes the deadline.
type ProtectionInput struct {
	Passcode  *string
	ExpiresAt *time.Time
}

// CreateListInput captures the member codes and protection of a new list.
type CreateListInput struct {
	OwnerID   string
	FileCodes []string
	Passcode  *string
	ExpiresAt *time.Time
}

// Resolve returns the record for code, or nil when none exists.
func (s *linkService) Resolve(ctx context.Context, kind model.RecordKind, code string) (*model.Record, error) {
	record, err := s.registry.Lookup(ctx, kind, code)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, registryError("resolve "+string(kind), err)
	}
	return record, nil
}

func (s *linkService) FinalizeLink(ctx context.Context, input FinalizeLinkInput) (*model.LinkRecord, error) {
	if input.OwnerID == "" || input.RemoteFileID == "" {
		return nil, fmt.Errorf("%w: owner and remote file id are required", ErrInvalidInput)
	}
	if input.SizeBytes < 0 {
		return nil, fmt.Errorf("%w: negative size", ErrInvalidInput)
	}

	link := &model.LinkRecord{
		RemoteFileID: input.RemoteFileID,
		DisplayName:  input.DisplayName,
		OwnerID:      input.OwnerID,
		Passcode:     normalizePasscode(input.Passcode),
		ExpiresAt:    input.ExpiresAt,
		SizeBytes:    input.SizeBytes,
		CreatedAt:    s.now().UTC(),
	}
	if link.DisplayName == "" {
		link.DisplayName = input.RemoteFileID
	}

	if err := s.insert(ctx, model.NewLinkRecord(link), func(code string) { link.Code = code }, s.cfg.FileRetention); err != nil {
		return nil, err
	}
	s.logger.Info("link finalized", zap.String("code", link.Code), zap.String("owner_id", link.OwnerID))
	return link, nil
}

func (s *linkService) UpdateLinkProtection(ctx context.Context, code, ownerID string, input ProtectionInput) (*model.LinkRecord, error) {
	record, err := s.loadOwned(ctx, model.KindLink, code, ownerID)
	if err != nil {
		return nil, err
	}
	record.SetProtection(normalizePasscode(input.Passcode), input.ExpiresAt)
	if err := s.registry.Put(ctx, record); err != nil {
		return nil, registryError("update link", err)
	}
	return record.Link, nil
}

// DeleteLink removes the remote file first and drops the record only once that
// succeeded, so a failed removal can be retried.
func (s *linkService) DeleteLink(ctx context.Context, code, ownerID string) error {
	return s.deleteOwned(ctx, model.KindLink, code, ownerID)
}

func (s *linkService) ListLinks(ctx context.Context, ownerID string) ([]*model.LinkRecord, error) {
	records, err := s.registry.ListByOwner(ctx, ownerID, model.KindLink)
	if err != nil {
		return nil, registryError("list links", err)
	}
	links := make([]*model.LinkRecord, 0, len(records))
	for _, r := range records {
		links = append(links, r.Link)
	}
	return links, nil
}

func (s *linkService) CreateList(ctx context.Context, input CreateListInput) (*model.ListRecord, error) {
	if input.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if len(input.FileCodes) == 0 {
		return nil, fmt.Errorf("%w: a list needs at least one file", ErrInvalidInput)
	}

	files := make([]model.ListEntry, 0, len(input.FileCodes))
	seen := make(map[string]struct{}, len(input.FileCodes))
	for _, code := range input.FileCodes {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		record, err := s.registry.Lookup(ctx, model.KindLink, code)
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, fmt.Errorf("%w: file %s is not yours", ErrForbidden, code)
		}
		if err != nil {
			return nil, registryError("load list member", err)
		}
		if record.OwnerID() != input.OwnerID {
			return nil, fmt.Errorf("%w: file %s is not yours", ErrForbidden, code)
		}
		files = append(files, model.EntryFromLink(record.Link))
	}

	list := &model.ListRecord{
		OwnerID:   input.OwnerID,
		Files:     files,
		Passcode:  normalizePasscode(input.Passcode),
		ExpiresAt: input.ExpiresAt,
		CreatedAt: s.now().UTC(),
	}
	if err := s.insert(ctx, model.NewListRecord(list), func(code string) { list.Code = code }, s.cfg.ListRetention); err != nil {
		return nil, err
	}
	s.logger.Info("list created",
		zap.String("code", list.Code),
		zap.String("owner_id", list.OwnerID),
		zap.Int("files", len(list.Files)),
	)
	return list, nil
}

func (s *linkService) UpdateListProtection(ctx context.Context, code, ownerID string, input ProtectionInput) (*model.ListRecord, error) {
	record, err := s.loadOwned(ctx, model.KindList, code, ownerID)
	if err != nil {
		return nil, err
	}
	record.SetProtection(normalizePasscode(input.Passcode), input.ExpiresAt)
	if err := s.registry.Put(ctx, record); err != nil {
		return nil, registryError("update list", err)
	}
	return record.List, nil
}

func (s *linkService) DeleteList(ctx context.Context, code, ownerID string) error {
	return s.deleteOwned(ctx, model.KindList, code, ownerID)
}

func (s *linkService) ListLists(ctx context.Context, ownerID string) ([]*model.ListRecord, error) {
	records, err := s.registry.ListByOwner(ctx, ownerID, model.KindList)
	if err != nil {
		return nil, registryError("list lists", err)
	}
	lists := make([]*model.ListRecord, 0, len(records))
	for _, r := range records {
		lists = append(lists, r.List)
	}
	return lists, nil
}

func (s *linkService) AdminDeleteLink(ctx context.Context, code string) error {
	if err := s.registry.Delete(ctx, model.KindLink, code); err != nil {
		return registryError("admin delete link", err)
	}
	s.logger.Info("link removed by admin", zap.String("code", code))
	return nil
}

func (s *linkService) AdminDeleteList(ctx context.Context, code string) error {
	if err := s.registry.Delete(ctx, model.KindList, code); err != nil {
		return registryError("admin delete list", err)
	}
	s.logger.Info("list removed by admin", zap.String("code", code))
	return nil
}

// RevokeOwner drops the owner's vault entry. Their links keep resolving to
// the gate but content requests fail until the owner signs in again.
func (s *linkService) RevokeOwner(ctx context.Context, ownerID string) error {
	if err := s.vault.Delete(ctx, ownerID); err != nil {
		return registryError("revoke owner", err)
	}
	s.logger.Warn("owner credential revoked", zap.String("owner_id", ownerID))
	return nil
}

func (s *linkService) insert(ctx context.Context, record *model.Record, assign func(code string), ttl time.Duration) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.codes.Next()
		if err != nil {
			return err
		}
		assign(code)

		err = s.registry.Create(ctx, record, ttl)
		if errors.Is(err, repository.ErrCodeTaken) {
			s.codes.Remember(code)
			s.logger.Debug("short code collision", zap.String("code", code))
			continue
		}
		if err != nil {
			return registryError("create "+string(record.Kind), err)
		}
		s.codes.Remember(code)
		return nil
	}
	return fmt.Errorf("create %s: no free short code after %d attempts", record.Kind, maxCodeAttempts)
}

func (s *linkService) loadOwned(ctx context.Context, kind model.RecordKind, code, ownerID string) (*model.Record, error) {
	record, err := s.registry.Lookup(ctx, kind, code)
	if err != nil {
		return nil, registryError("load "+string(kind), err)
	}
	if record.OwnerID() != ownerID {
		return nil, fmt.Errorf("%w: %s %s belongs to another owner", ErrForbidden, kind, code)
	}
	return record, nil
}

func (s *linkService) deleteOwned(ctx context.Context, kind model.RecordKind, code, ownerID string) error {
	record, err := s.registry.Lookup(ctx, kind, code)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return nil
	}
	if err != nil {
		return registryError("load "+string(kind), err)
	}
	if record.OwnerID() != ownerID {
		return fmt.Errorf("%w: %s %s belongs to another owner", ErrForbidden, kind, code)
	}
	if kind == model.KindLink && s.files != nil {
		if err := s.files.Remove(ctx, TargetFromLink(record.Link)); err != nil {
			return fmt.Errorf("delete remote file for %s: %w", code, err)
		}
	}
	if err := s.registry.Delete(ctx, kind, code); err != nil {
		return registryError("delete "+string(kind), err)
	}
	s.logger.Info("record deleted", zap.String("kind", string(kind)), zap.String("code", code))
	return nil
}

func registryError(op string, err error) error {
	if errors.Is(err, repository.ErrUnavailable) {
		return fmt.Errorf("%w: %s: %w", ErrRegistryUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func normalizePasscode(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	v := *p
	return &v
}
