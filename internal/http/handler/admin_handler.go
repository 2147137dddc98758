package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/petermyo/DecentralizeFileShare/internal/app/service"
	"github.com/petermyo/DecentralizeFileShare/internal/http/middleware"
	"go.uber.org/zap"
)

// AdminHandler exposes moderation endpoints. Routes must sit behind RequireAdmin.
type AdminHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(logger *zap.Logger, links service.LinkService) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{logger: logger, linkService: links}
}

func (h *AdminHandler) Register(router fiber.Router) {
	router.Delete("/links/:code", h.DeleteLink)
	router.Delete("/lists/:code", h.DeleteList)
	router.Post("/owners/:id/revoke", h.RevokeOwner)
}

// DeleteLink handles DELETE /api/admin/links/:code
func (h *AdminHandler) DeleteLink(c *fiber.Ctx) error {
	if err := h.linkService.AdminDeleteLink(c.UserContext(), c.Params("code")); err != nil {
		return writeAPIError(c, h.logger, "failed to delete link", err)
	}
	h.audit(c, "delete_link", c.Params("code"))
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteList handles DELETE /api/admin/lists/:code
func (h *AdminHandler) DeleteList(c *fiber.Ctx) error {
	if err := h.linkService.AdminDeleteList(c.UserContext(), c.Params("code")); err != nil {
		return writeAPIError(c, h.logger, "failed to delete list", err)
	}
	h.audit(c, "delete_list", c.Params("code"))
	return c.SendStatus(fiber.StatusNoContent)
}

// RevokeOwner handles POST /api/admin/owners/:id/revoke
func (h *AdminHandler) RevokeOwner(c *fiber.Ctx) error {
	if err := h.linkService.RevokeOwner(c.UserContext(), c.Params("id")); err != nil {
		return writeAPIError(c, h.logger, "failed to revoke owner", err)
	}
	h.audit(c, "revoke_owner", c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AdminHandler) audit(c *fiber.Ctx, action, target string) {
	h.logger.Info("admin action",
		zap.String("action", action),
		zap.String("target", target),
		zap.String("admin_id", ownerID(c)),
		zap.String("request_id", middleware.RequestIDFrom(c)),
	)
}
