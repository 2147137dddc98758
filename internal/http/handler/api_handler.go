package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
	"github.com/petermyo/DecentralizeFileShare/internal/app/repository"
	"github.com/petermyo/DecentralizeFileShare/internal/app/service"
	"github.com/petermyo/DecentralizeFileShare/internal/http/middleware"
	httpUtil "github.com/petermyo/DecentralizeFileShare/internal/http/util"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	BaseURL     string
	Secure      bool
}

// APIHandler implements the owner management API endpoints.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	baseURL     string
	secure      bool
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
		baseURL:     deps.BaseURL,
		secure:      deps.Secure,
	}
}

// Register wires API routes onto the provided router. The router must already
// enforce an owner session.
func (h *APIHandler) Register(router fiber.Router) {
	router.Get("/me", h.Me)
	router.Post("/logout", h.Logout)

	links := router.Group("/links")
	{
		links.Post("/", h.CreateLink)
		links.Get("/", h.ListLinks)
		links.Patch("/:code", h.UpdateLink)
		links.Delete("/:code", h.DeleteLink)
	}

	lists := router.Group("/lists")
	{
		lists.Post("/", h.CreateList)
		lists.Get("/", h.ListLists)
		lists.Patch("/:code", h.UpdateList)
		lists.Delete("/:code", h.DeleteList)
	}
}

// CreateLinkRequest represents the request body for publishing an uploaded file.
type CreateLinkRequest struct {
	RemoteFileID string     `json:"remote_file_id"`
	DisplayName  string     `json:"display_name"`
	SizeBytes    int64      `json:"size_bytes"`
	Passcode     *string    `json:"passcode,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// ProtectionRequest replaces passcode and expiry of a link or list.
type ProtectionRequest struct {
	Passcode  *string    `json:"passcode"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// CreateListRequest represents the request body for creating a list.
type CreateListRequest struct {
	FileCodes []string   `json:"file_codes"`
	Passcode  *string    `json:"passcode,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// LinkResponse is the owner's view of a file link. The passcode itself is never returned.
type LinkResponse struct {
	Code         string     `json:"code"`
	URL          string     `json:"url"`
	PreviewURL   string     `json:"preview_url"`
	RemoteFileID string     `json:"remote_file_id"`
	DisplayName  string     `json:"display_name"`
	SizeBytes    int64      `json:"size_bytes"`
	HasPasscode  bool       `json:"has_passcode"`
	ExpiresAt    *time.Time `json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ListResponse is the owner's view of a list.
type ListResponse struct {
	Code        string         `json:"code"`
	URL         string         `json:"url"`
	Files       []ListFileView `json:"files"`
	HasPasscode bool           `json:"has_passcode"`
	ExpiresAt   *time.Time     `json:"expires_at"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ListFileView describes one member of a list.
type ListFileView struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	SizeBytes   int64  `json:"size_bytes"`
}

// Me handles GET /api/me
func (h *APIHandler) Me(c *fiber.Ctx) error {
	claims := middleware.SessionFrom(c)
	return c.JSON(fiber.Map{
		"owner_id": claims.OwnerID(),
		"name":     claims.Name,
		"picture":  claims.Picture,
	})
}

// Logout handles POST /api/logout
func (h *APIHandler) Logout(c *fiber.Ctx) error {
	expireCookie(c, httpUtil.SessionCookie, "/", h.secure)
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.RemoteFileID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "remote_file_id is required",
		})
	}

	link, err := h.linkService.FinalizeLink(c.UserContext(), service.FinalizeLinkInput{
		OwnerID:      ownerID(c),
		RemoteFileID: req.RemoteFileID,
		DisplayName:  req.DisplayName,
		SizeBytes:    req.SizeBytes,
		Passcode:     req.Passcode,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		return h.writeError(c, "failed to create link", err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.linkResponse(link))
}

// ListLinks handles GET /api/links
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	links, err := h.linkService.ListLinks(c.UserContext(), ownerID(c))
	if err != nil {
		return h.writeError(c, "failed to list links", err)
	}

	response := make([]LinkResponse, len(links))
	for i, link := range links {
		response[i] = h.linkResponse(link)
	}
	return c.JSON(fiber.Map{
		"links": response,
		"count": len(response),
	})
}

// UpdateLink handles PATCH /api/links/:code
func (h *APIHandler) UpdateLink(c *fiber.Ctx) error {
	var req ProtectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	link, err := h.linkService.UpdateLinkProtection(c.UserContext(), c.Params("code"), ownerID(c), service.ProtectionInput{
		Passcode:  req.Passcode,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		return h.writeError(c, "failed to update link", err)
	}
	return c.JSON(h.linkResponse(link))
}

// DeleteLink handles DELETE /api/links/:code
func (h *APIHandler) DeleteLink(c *fiber.Ctx) error {
	if err := h.linkService.DeleteLink(c.UserContext(), c.Params("code"), ownerID(c)); err != nil {
		return h.writeError(c, "failed to delete link", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateList handles POST /api/lists
func (h *APIHandler) CreateList(c *fiber.Ctx) error {
	var req CreateListRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	list, err := h.linkService.CreateList(c.UserContext(), service.CreateListInput{
		OwnerID:   ownerID(c),
		FileCodes: req.FileCodes,
		Passcode:  req.Passcode,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		return h.writeError(c, "failed to create list", err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.listResponse(list))
}

// ListLists handles GET /api/lists
func (h *APIHandler) ListLists(c *fiber.Ctx) error {
	lists, err := h.linkService.ListLists(c.UserContext(), ownerID(c))
	if err != nil {
		return h.writeError(c, "failed to list lists", err)
	}

	response := make([]ListResponse, len(lists))
	for i, list := range lists {
		response[i] = h.listResponse(list)
	}
	return c.JSON(fiber.Map{
		"lists": response,
		"count": len(response),
	})
}

// UpdateList handles PATCH /api/lists/:code
func (h *APIHandler) UpdateList(c *fiber.Ctx) error {
	var req ProtectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	list, err := h.linkService.UpdateListProtection(c.UserContext(), c.Params("code"), ownerID(c), service.ProtectionInput{
		Passcode:  req.Passcode,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		return h.writeError(c, "failed to update list", err)
	}
	return c.JSON(h.listResponse(list))
}

// DeleteList handles DELETE /api/lists/:code
func (h *APIHandler) DeleteList(c *fiber.Ctx) error {
	if err := h.linkService.DeleteList(c.UserContext(), c.Params("code"), ownerID(c)); err != nil {
		return h.writeError(c, "failed to delete list", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandler) linkResponse(link *model.LinkRecord) LinkResponse {
	return LinkResponse{
		Code:         link.Code,
		URL:          h.baseURL + "/s/" + link.Code,
		PreviewURL:   h.baseURL + "/p/" + link.Code,
		RemoteFileID: link.RemoteFileID,
		DisplayName:  link.DisplayName,
		SizeBytes:    link.SizeBytes,
		HasPasscode:  link.Passcode != nil,
		ExpiresAt:    link.ExpiresAt,
		CreatedAt:    link.CreatedAt,
	}
}

func (h *APIHandler) listResponse(list *model.ListRecord) ListResponse {
	files := make([]ListFileView, len(list.Files))
	for i, f := range list.Files {
		files[i] = ListFileView{Code: f.Code, DisplayName: f.DisplayName, SizeBytes: f.SizeBytes}
	}
	return ListResponse{
		Code:        list.Code,
		URL:         h.baseURL + "/l/" + list.Code,
		Files:       files,
		HasPasscode: list.Passcode != nil,
		ExpiresAt:   list.ExpiresAt,
		CreatedAt:   list.CreatedAt,
	}
}

func (h *APIHandler) writeError(c *fiber.Ctx, msg string, err error) error {
	return writeAPIError(c, h.logger, msg, err)
}

func writeAPIError(c *fiber.Ctx, logger *zap.Logger, msg string, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status = fiber.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, repository.ErrLinkNotFound):
		status = fiber.StatusNotFound
		msg = "not found"
	case errors.Is(err, service.ErrRegistryUnavailable):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, service.ErrOwnerAccessRevoked):
		// The stored Drive grant is gone; signing in again re-enrolls it.
		status = fiber.StatusUnauthorized
		msg = "storage access revoked, sign in again"
	case errors.Is(err, service.ErrContentUnavailable):
		status = fiber.StatusForbidden
		msg = "file cannot be changed with this app's access"
	case errors.Is(err, service.ErrProviderUnavailable):
		status = fiber.StatusBadGateway
	}

	if status >= fiber.StatusInternalServerError {
		logger.Error(msg, zap.Error(err), zap.String("path", c.Path()))
	} else {
		logger.Debug(msg, zap.Error(err), zap.String("path", c.Path()))
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func ownerID(c *fiber.Ctx) string {
	if claims := middleware.SessionFrom(c); claims != nil {
		return claims.OwnerID()
	}
	return ""
}
