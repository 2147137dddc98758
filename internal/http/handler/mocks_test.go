package handler

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
	"github.com/petermyo/DecentralizeFileShare/internal/app/provider"
	"github.com/petermyo/DecentralizeFileShare/internal/app/service"
)

type stubLinkService struct {
	service.LinkService

	records    map[string]*model.Record
	resolveErr error

	finalizeLinkFn         func(ctx context.Context, input service.FinalizeLinkInput) (*model.LinkRecord, error)
	updateLinkProtectionFn func(ctx context.Context, code, ownerID string, input service.ProtectionInput) (*model.LinkRecord, error)
	deleteLinkFn           func(ctx context.Context, code, ownerID string) error
	listLinksFn            func(ctx context.Context, ownerID string) ([]*model.LinkRecord, error)
	createListFn           func(ctx context.Context, input service.CreateListInput) (*model.ListRecord, error)
	adminDeleteLinkFn      func(ctx context.Context, code string) error
	revokeOwnerFn          func(ctx context.Context, ownerID string) error
}

func (s *stubLinkService) Resolve(_ context.Context, kind model.RecordKind, code string) (*model.Record, error) {
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	return s.records[string(kind)+":"+code], nil
}

func (s *stubLinkService) add(r *model.Record) {
	if s.records == nil {
		s.records = make(map[string]*model.Record)
	}
	s.records[string(r.Kind)+":"+r.Code()] = r
}

func (s *stubLinkService) FinalizeLink(ctx context.Context, input service.FinalizeLinkInput) (*model.LinkRecord, error) {
	return s.finalizeLinkFn(ctx, input)
}

func (s *stubLinkService) UpdateLinkProtection(ctx context.Context, code, ownerID string, input service.ProtectionInput) (*model.LinkRecord, error) {
	return s.updateLinkProtectionFn(ctx, code, ownerID, input)
}

func (s *stubLinkService) DeleteLink(ctx context.Context, code, ownerID string) error {
	return s.deleteLinkFn(ctx, code, ownerID)
}

func (s *stubLinkService) ListLinks(ctx context.Context, ownerID string) ([]*model.LinkRecord, error) {
	return s.listLinksFn(ctx, ownerID)
}

func (s *stubLinkService) CreateList(ctx context.Context, input service.CreateListInput) (*model.ListRecord, error) {
	return s.createListFn(ctx, input)
}

func (s *stubLinkService) AdminDeleteLink(ctx context.Context, code string) error {
	return s.adminDeleteLinkFn(ctx, code)
}

func (s *stubLinkService) RevokeOwner(ctx context.Context, ownerID string) error {
	return s.revokeOwnerFn(ctx, ownerID)
}

type stubProxy struct {
	mu      sync.Mutex
	streams []service.StreamTarget

	body      string
	mimeType  string
	streamErr error
}

func (p *stubProxy) Stream(_ context.Context, target service.StreamTarget, disposition service.Disposition) (*service.Content, error) {
	p.mu.Lock()
	p.streams = append(p.streams, target)
	p.mu.Unlock()
	if p.streamErr != nil {
		return nil, p.streamErr
	}

	header := map[string]string{"Content-Type": "application/octet-stream"}
	if disposition == service.DispositionAttachment {
		header["Content-Disposition"] = `attachment; filename="` + target.DisplayName + `"`
	}
	return &service.Content{
		Header:        header,
		ContentLength: int64(len(p.body)),
		Body:          io.NopCloser(strings.NewReader(p.body)),
	}, nil
}

func (p *stubProxy) Describe(_ context.Context, target service.StreamTarget) (*provider.ObjectMetadata, error) {
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	return &provider.ObjectMetadata{ID: target.RemoteFileID, Name: target.DisplayName, MimeType: p.mimeType}, nil
}

func (p *stubProxy) targets() []service.StreamTarget {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]service.StreamTarget(nil), p.streams...)
}

type recordedEvent struct {
	kind    model.RecordKind
	code    string
	outcome string
}

type chanRecorder chan recordedEvent

func (r chanRecorder) Publish(kind model.RecordKind, code, outcome, _, _ string) error {
	r <- recordedEvent{kind: kind, code: code, outcome: outcome}
	return nil
}

type stubAuthenticator struct {
	exchangeFn func(ctx context.Context, code string) (*provider.Token, error)
	identity   *provider.Identity
}

func (a *stubAuthenticator) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (a *stubAuthenticator) Exchange(ctx context.Context, code string) (*provider.Token, error) {
	return a.exchangeFn(ctx, code)
}

func (a *stubAuthenticator) Identify(context.Context, string) (*provider.Identity, error) {
	return a.identity, nil
}

type enrollFunc func(ctx context.Context, ownerID string, tok *provider.Token) error

func (f enrollFunc) Enroll(ctx context.Context, ownerID string, tok *provider.Token) error {
	return f(ctx, ownerID, tok)
}

func strPtr(s string) *string { return &s }
