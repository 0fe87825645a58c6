package controllers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LucasPerrin/Crealance/app/models"
	"github.com/LucasPerrin/Crealance/app/repository"
	"github.com/LucasPerrin/Crealance/internal/pkg/entitlements"
	"github.com/LucasPerrin/Crealance/internal/pkg/usercontext"
)

type createMissionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	BudgetCents int64  `json:"budget_cents"`
	Currency    string `json:"currency"`
	Deadline    string `json:"deadline"`
}

// HandleCreateMission posts a new mission. Creator role required; the open
// mission count is capped by the creator's plan.
func HandleCreateMission(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req createMissionRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_body", "request body must be JSON")
	}

	repo := repository.GetGlobalFactory().GetMissionRepository()

	plan := entitlements.NormalizePlan(userCtx.Plan)
	open, err := repo.CountOpenByCreator(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not check mission quota")
	}
	if limit := entitlements.MaxOpenMissions(plan); open >= int64(limit) {
		if limit == 0 {
			return jsonError(c, fiber.StatusForbidden, "subscription_required",
				"posting missions requires an active subscription")
		}
		return jsonError(c, fiber.StatusForbidden, "quota_exceeded",
			"open mission limit reached for plan "+string(plan))
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "eur"
	}

	mission := &models.Mission{
		UUID:        uuid.NewString(),
		CreatorID:   userCtx.UserID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		BudgetCents: req.BudgetCents,
		Currency:    currency,
		Status:      models.MissionStatusOpen,
	}
	if raw := strings.TrimSpace(req.Deadline); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid_deadline", "deadline must be RFC3339")
		}
		mission.Deadline = &t
	}

	if err := mission.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}
	if err := repo.Create(mission); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not create mission")
	}

	return c.Status(fiber.StatusCreated).JSON(mission)
}

// HandleListMissions is the public mission board with filters and paging.
func HandleListMissions(c *fiber.Ctx) error {
	filters := repository.MissionFilters{
		Status:   strings.TrimSpace(c.Query("status", models.MissionStatusOpen)),
		Category: strings.TrimSpace(c.Query("category")),
		Query:    strings.TrimSpace(c.Query("q")),
	}
	if v, err := strconv.ParseInt(c.Query("min_budget"), 10, 64); err == nil {
		filters.MinBudgetCents = v
	}
	if v, err := strconv.ParseInt(c.Query("max_budget"), 10, 64); err == nil {
		filters.MaxBudgetCents = v
	}

	offset, limit := paginationParams(c)
	repo := repository.GetGlobalFactory().GetMissionRepository()

	missions, err := repo.List(filters, offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not list missions")
	}
	total, err := repo.Count(filters)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not count missions")
	}

	return c.JSON(fiber.Map{
		"missions": missions,
		"total":    total,
	})
}

// HandleGetMission returns one mission by UUID.
func HandleGetMission(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetMissionRepository()
	mission, err := repo.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "mission not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not load mission")
	}
	return c.JSON(mission)
}

// HandleMyMissions lists the authenticated creator's own missions.
func HandleMyMissions(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	offset, limit := paginationParams(c)

	repo := repository.GetGlobalFactory().GetMissionRepository()
	missions, err := repo.ListByCreator(userCtx.UserID, offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not list missions")
	}
	return c.JSON(fiber.Map{"missions": missions})
}

// HandleCancelMission withdraws an OPEN mission owned by the caller.
func HandleCancelMission(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repo := repository.GetGlobalFactory().GetMissionRepository()
	mission, err := repo.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "mission not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not load mission")
	}

	ok, err := repo.Cancel(mission.ID, userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not cancel mission")
	}
	if !ok {
		if mission.CreatorID != userCtx.UserID {
			return jsonError(c, fiber.StatusForbidden, "forbidden", "only the mission owner can cancel")
		}
		return jsonError(c, fiber.StatusConflict, "invalid_state", "only open missions can be canceled")
	}

	return c.JSON(fiber.Map{"ok": true})
}
