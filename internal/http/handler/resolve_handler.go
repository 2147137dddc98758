package handler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
	"github.com/petermyo/DecentralizeFileShare/internal/app/provider"
	"github.com/petermyo/DecentralizeFileShare/internal/app/service"
	prominfra "github.com/petermyo/DecentralizeFileShare/internal/infra/prometheus"
	httpUtil "github.com/petermyo/DecentralizeFileShare/internal/http/util"
	"github.com/petermyo/DecentralizeFileShare/internal/http/view"
	"go.uber.org/zap"
)

// ContentStreamer is what the resolver needs from the content proxy.
type ContentStreamer interface {
	Stream(ctx context.Context, target service.StreamTarget, disposition service.Disposition) (*service.Content, error)
	Describe(ctx context.Context, target service.StreamTarget) (*provider.ObjectMetadata, error)
}

// AccessRecorder receives one event per gate decision.
type AccessRecorder interface {
	Publish(kind model.RecordKind, code, outcome, ip, userAgent string) error
}

// ResolveDeps groups dependencies required by the public resolution routes.
type ResolveDeps struct {
	Logger  *zap.Logger
	Links   service.LinkService
	Proxy   ContentStreamer
	Grants  *httpUtil.TokenSigner
	Events  AccessRecorder
	Metrics *prominfra.Metrics
	Now     func() time.Time
}

// ResolveHandler serves /s, /l and /p short links.
type ResolveHandler struct {
	logger  *zap.Logger
	links   service.LinkService
	proxy   ContentStreamer
	grants  *httpUtil.TokenSigner
	events  AccessRecorder
	metrics *prominfra.Metrics
	now     func() time.Time
}

// NewResolveHandler creates a resolve handler with the provided dependencies.
func NewResolveHandler(deps ResolveDeps) *ResolveHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &ResolveHandler{
		logger:  logger,
		links:   deps.Links,
		proxy:   deps.Proxy,
		grants:  deps.Grants,
		events:  deps.Events,
		metrics: deps.Metrics,
		now:     now,
	}
}

// Register wires resolution routes onto the provided router.
func (h *ResolveHandler) Register(router fiber.Router) {
	router.Get("/s/:code", h.File)
	router.Post("/s/:code", h.File)
	router.Get("/l/:code", h.List)
	router.Post("/l/:code", h.List)
	router.Get("/l/:code/f/:index", h.ListMember)
	router.Get("/p/:code", h.Preview)
	router.Post("/p/:code", h.Preview)
}

// File streams a single shared file once the gate allows it.
func (h *ResolveHandler) File(c *fiber.Ctx) error {
	record, ok, err := h.check(c, model.KindLink, true)
	if !ok {
		return err
	}

	disposition := service.DispositionAttachment
	if c.Query("inline") == "true" || c.FormValue("inline") == "true" {
		disposition = service.DispositionInline
	}
	return h.stream(c, service.TargetFromLink(record.Link), disposition)
}

// List renders the member listing of a list once the gate allows it.
func (h *ResolveHandler) List(c *fiber.Ctx) error {
	record, ok, err := h.check(c, model.KindList, true)
	if !ok {
		return err
	}

	list := record.List
	grant, err := h.grants.Issue(httpUtil.Scope(string(model.KindList), list.Code))
	if err != nil {
		return h.fail(c, fmt.Errorf("issue list grant: %w", err))
	}

	items := make([]view.ListItem, len(list.Files))
	for i, f := range list.Files {
		items[i] = view.ListItem{
			Name:        f.DisplayName,
			Size:        f.SizeBytes,
			DownloadURL: fmt.Sprintf("/l/%s/f/%d?t=%s", url.PathEscape(list.Code), i, url.QueryEscape(grant)),
		}
	}
	html, err := view.RenderList(view.ListData{Code: list.Code, Items: items})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Type("html", "utf-8").SendString(html)
}

// ListMember streams one file of a list. Access rests on the list's gate, proven
// by the grant token handed out with the listing.
func (h *ResolveHandler) ListMember(c *fiber.Ctx) error {
	record, ok, err := h.check(c, model.KindList, false)
	if !ok {
		return err
	}

	index, convErr := strconv.Atoi(c.Params("index"))
	if convErr != nil || index < 0 || index >= len(record.List.Files) {
		return h.message(c, fiber.StatusNotFound, "File not found", "This list has no such file.")
	}
	return h.stream(c, service.TargetFromEntry(record.List.Files[index]), service.DispositionAttachment)
}

// Preview renders an inline preview page for a single file.
func (h *ResolveHandler) Preview(c *fiber.Ctx) error {
	record, ok, err := h.check(c, model.KindLink, true)
	if !ok {
		return err
	}

	link := record.Link
	meta, err := h.proxy.Describe(c.UserContext(), service.TargetFromLink(link))
	if err != nil {
		return h.fail(c, err)
	}
	grant, err := h.grants.Issue(httpUtil.Scope(string(model.KindLink), link.Code))
	if err != nil {
		return h.fail(c, fmt.Errorf("issue link grant: %w", err))
	}

	base := "/s/" + url.PathEscape(link.Code)
	token := url.QueryEscape(grant)
	html, err := view.RenderPreview(view.PreviewData{
		Name:        link.DisplayName,
		MimeType:    meta.MimeType,
		InlineURL:   base + "?inline=true&t=" + token,
		DownloadURL: base + "?t=" + token,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Type("html", "utf-8").SendString(html)
}

// check looks up the record and runs the gate. When ok is false the response
// has already been written and err is what the route should return.
func (h *ResolveHandler) check(c *fiber.Ctx, kind model.RecordKind, acceptPasscode bool) (*model.Record, bool, error) {
	code := c.Params("code")
	record, err := h.links.Resolve(c.UserContext(), kind, code)
	if err != nil {
		return nil, false, h.fail(c, err)
	}

	var attempt service.Attempt
	if token := c.Query("t"); token != "" && record != nil {
		if verr := h.grants.Validate(httpUtil.Scope(string(kind), code), token); verr == nil {
			attempt.Granted = true
		}
	}
	submitted := acceptPasscode && c.Method() == fiber.MethodPost
	if submitted {
		passcode := c.FormValue("passcode")
		attempt.Passcode = &passcode
	}

	decision := service.Evaluate(record, attempt, h.now())
	h.observe(c, kind, code, decision)

	switch decision {
	case service.DecisionGranted:
		return record, true, nil
	case service.DecisionNotFound:
		return nil, false, h.message(c, fiber.StatusNotFound, "Link not found", "This link does not exist or has been removed.")
	case service.DecisionExpired:
		return nil, false, h.message(c, fiber.StatusForbidden, "Link expired", "This link is no longer available.")
	case service.DecisionPasscodeRejected:
		return nil, false, h.challenge(c, kind, code, fiber.StatusUnauthorized, "Incorrect passcode.")
	default:
		return nil, false, h.challenge(c, kind, code, fiber.StatusOK, "")
	}
}

func (h *ResolveHandler) stream(c *fiber.Ctx, target service.StreamTarget, disposition service.Disposition) error {
	content, err := h.proxy.Stream(c.UserContext(), target, disposition)
	if err != nil {
		return h.fail(c, err)
	}
	for k, v := range content.Header {
		c.Set(k, v)
	}
	c.Status(fiber.StatusOK)
	return c.SendStream(content.Body, int(content.ContentLength))
}

func (h *ResolveHandler) challenge(c *fiber.Ctx, kind model.RecordKind, code string, status int, errMsg string) error {
	action := c.Path()
	if kind == model.KindList {
		action = "/l/" + url.PathEscape(code)
	}
	html, err := view.RenderChallenge(view.ChallengeData{
		Action: action,
		Inline: c.Query("inline") == "true" || c.FormValue("inline") == "true",
		Error:  errMsg,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(status).Type("html", "utf-8").SendString(html)
}

func (h *ResolveHandler) message(c *fiber.Ctx, status int, heading, msg string) error {
	html, err := view.RenderMessage(view.MessageData{Heading: heading, Message: msg})
	if err != nil {
		return c.Status(status).SendString(heading)
	}
	return c.Status(status).Type("html", "utf-8").SendString(html)
}

// fail maps service errors onto status codes. Details stay in the log.
func (h *ResolveHandler) fail(c *fiber.Ctx, err error) error {
	status, heading, msg := fiber.StatusInternalServerError, "Something went wrong", "Please try again later."
	switch {
	case errors.Is(err, service.ErrContentUnavailable):
		status, heading, msg = fiber.StatusGone, "File unavailable", "The shared file no longer exists."
	case errors.Is(err, service.ErrProviderUnavailable):
		status, heading, msg = fiber.StatusBadGateway, "Storage unavailable", "The storage provider did not respond. Please try again."
	case errors.Is(err, service.ErrRegistryUnavailable):
		status, heading, msg = fiber.StatusServiceUnavailable, "Temporarily unavailable", "Please try again in a moment."
	}

	h.logger.Error("resolution failed",
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Error(err),
	)
	return h.message(c, status, heading, msg)
}

func (h *ResolveHandler) observe(c *fiber.Ctx, kind model.RecordKind, code string, decision service.Decision) {
	outcome := decision.String()
	h.metrics.ObserveResolution(string(kind), outcome)
	if h.events == nil {
		return
	}

	// fiber reuses the context after the handler returns, so copy what the goroutine needs.
	ip := c.IP()
	ua := string([]byte(c.Get(fiber.HeaderUserAgent)))
	code = string([]byte(code))
	go func() {
		if err := h.events.Publish(kind, code, outcome, ip, ua); err != nil {
			h.logger.Debug("access event dropped", zap.String("code", code), zap.Error(err))
		}
	}()
}
