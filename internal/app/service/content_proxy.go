package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
	"github.com/petermyo/DecentralizeFileShare/internal/app/provider"
	prominfra "github.com/petermyo/DecentralizeFileShare/internal/infra/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const fallbackContentType = "application/octet-stream"

// Disposition selects how the browser should present streamed content.
type Disposition int

const (
	DispositionAttachment Disposition = iota
	DispositionInline
)

// StreamTarget identifies a remote object and the owner whose credential reads it.
type StreamTarget struct {
	OwnerID      string
	RemoteFileID string
	DisplayName  string
}

// TargetFromLink builds a StreamTarget for a file link.
func TargetFromLink(link *model.LinkRecord) StreamTarget {
	return StreamTarget{OwnerID: link.OwnerID, RemoteFileID: link.RemoteFileID, DisplayName: link.DisplayName}
}

// TargetFromEntry builds a StreamTarget for a list member.
func TargetFromEntry(entry model.ListEntry) StreamTarget {
	return StreamTarget{OwnerID: entry.OwnerID, RemoteFileID: entry.RemoteFileID, DisplayName: entry.DisplayName}
}

// Content is a ready-to-relay response. ContentLength is -1 when unknown.
// Callers must close Body.
type Content struct {
	Header        map[string]string
	ContentLength int64
	Body          io.ReadCloser
}

// AccessTokenSource yields an owner's current access token.
type AccessTokenSource interface {
	AccessToken(ctx context.Context, ownerID string) (string, error)
}

// ContentProxy streams remote objects to requesters using the owner's credential.
type ContentProxy struct {
	tokens   AccessTokenSource
	provider provider.ContentProvider
	metrics  *prominfra.Metrics
	logger   *zap.Logger
}

// NewContentProxy wires a proxy.
func NewContentProxy(tokens AccessTokenSource, content provider.ContentProvider, metrics *prominfra.Metrics, logger *zap.Logger) *ContentProxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentProxy{tokens: tokens, provider: content, metrics: metrics, logger: logger}
}

// Describe returns provider metadata for target.
func (p *ContentProxy) Describe(ctx context.Context, target StreamTarget) (*provider.ObjectMetadata, error) {
	token, err := p.tokens.AccessToken(ctx, target.OwnerID)
	if err != nil {
		return nil, err
	}
	meta, err := p.provider.Metadata(ctx, token, target.RemoteFileID)
	if err != nil {
		return nil, mapProviderError(err)
	}
	return meta, nil
}

// Stream opens target at the provider. Nothing is buffered; the returned body
// reads straight from the upstream response.
func (p *ContentProxy) Stream(ctx context.Context, target StreamTarget, disposition Disposition) (*Content, error) {
	ctx, span := tracer.Start(ctx, "ContentProxy.Stream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("owner.id", target.OwnerID),
			attribute.String("file.id", target.RemoteFileID),
		),
	)
	defer span.End()

	token, err := p.tokens.AccessToken(ctx, target.OwnerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "credential")
		return nil, err
	}

	meta, err := p.provider.Metadata(ctx, token, target.RemoteFileID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "metadata")
		return nil, mapProviderError(err)
	}

	stream, err := p.provider.Open(ctx, token, target.RemoteFileID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open")
		return nil, mapProviderError(err)
	}

	contentType := meta.MimeType
	if contentType == "" {
		contentType = fallbackContentType
	}
	header := map[string]string{"Content-Type": contentType}
	if disposition != DispositionInline {
		header["Content-Disposition"] = attachmentDisposition(target.DisplayName)
	}

	length := stream.ContentLength
	if length < 0 {
		length = -1
	}

	p.logger.Debug("streaming remote object",
		zap.String("file_id", target.RemoteFileID),
		zap.String("content_type", contentType),
		zap.Int64("content_length", length),
	)

	return &Content{
		Header:        header,
		ContentLength: length,
		Body:          &countingReader{rc: stream.Body, metrics: p.metrics},
	}, nil
}

// Remove deletes target at the provider with the owner's credential.
func (p *ContentProxy) Remove(ctx context.Context, target StreamTarget) error {
	token, err := p.tokens.AccessToken(ctx, target.OwnerID)
	if err != nil {
		return err
	}
	if err := p.provider.Delete(ctx, token, target.RemoteFileID); err != nil {
		return mapProviderError(err)
	}
	p.logger.Info("remote object deleted", zap.String("file_id", target.RemoteFileID), zap.String("owner_id", target.OwnerID))
	return nil
}

func mapProviderError(err error) error {
	switch {
	case errors.Is(err, provider.ErrObjectUnavailable):
		return fmt.Errorf("%w: %w", ErrContentUnavailable, err)
	case errors.Is(err, provider.ErrGrantRevoked):
		return fmt.Errorf("%w: %w", ErrOwnerAccessRevoked, err)
	default:
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
}

// attachmentDisposition quotes name and adds an RFC 5987 form for non-ASCII names.
func attachmentDisposition(name string) string {
	if name == "" {
		return "attachment"
	}
	quoted := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "", "\n", "").Replace(name)
	value := `attachment; filename="` + quoted + `"`
	for _, r := range name {
		if r > 0x7e {
			value += "; filename*=UTF-8''" + url.PathEscape(name)
			break
		}
	}
	return value
}

type countingReader struct {
	rc      io.ReadCloser
	metrics *prominfra.Metrics
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.rc.Read(p)
	c.metrics.AddProxiedBytes(n)
	return n, err
}

func (c *countingReader) Close() error {
	return c.rc.Close()
}
