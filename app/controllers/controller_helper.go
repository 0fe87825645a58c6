package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/LucasPerrin/Crealance/internal/pkg/delivery"
	"github.com/LucasPerrin/Crealance/internal/pkg/env"
)

const defaultPageSize = 20
const maxPageSize = 100

// jsonError writes a uniform JSON error body.
func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}

// paginationParams reads ?page=&per_page= and returns offset/limit.
func paginationParams(c *fiber.Ctx) (int, int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.Query("per_page", strconv.Itoa(defaultPageSize)))
	if perPage < 1 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}
	return (page - 1) * perPage, perPage
}

// deliveryError maps delivery state machine errors onto the HTTP surface.
func deliveryError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, delivery.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return jsonError(c, fiber.StatusNotFound, "not_found", "delivery not found")
	case errors.Is(err, delivery.ErrForbidden):
		return jsonError(c, fiber.StatusForbidden, "forbidden", "not a participant of this delivery")
	case errors.Is(err, delivery.ErrInvalidState):
		return jsonError(c, fiber.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, delivery.ErrUpstream):
		return jsonError(c, fiber.StatusBadGateway, "upstream_unavailable", "payment provider unavailable, retry later")
	default:
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

// publicBaseURL builds absolute URLs for checkout redirects and mails.
func publicBaseURL() string {
	domain := strings.TrimSpace(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000"))
	return strings.TrimRight(domain, "/")
}
