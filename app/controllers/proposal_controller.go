package controllers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/LucasPerrin/Crealance/app/models"
	"github.com/LucasPerrin/Crealance/app/repository"
	"github.com/LucasPerrin/Crealance/internal/pkg/entitlements"
	"github.com/LucasPerrin/Crealance/internal/pkg/mail"
	"github.com/LucasPerrin/Crealance/internal/pkg/usercontext"
)

type submitProposalRequest struct {
	Message      string `json:"message"`
	QuoteCents   int64  `json:"quote_cents"`
	DeliveryDays int    `json:"delivery_days"`
}

// HandleSubmitProposal files a proposal on an open mission. Freelancer role
// required; one proposal per freelancer per mission; daily quota by plan.
func HandleSubmitProposal(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	missionRepo := repository.GetGlobalFactory().GetMissionRepository()
	mission, err := missionRepo.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "mission not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not load mission")
	}
	if !mission.IsOpen() {
		return jsonError(c, fiber.StatusConflict, "invalid_state", "mission no longer accepts proposals")
	}
	if mission.CreatorID == userCtx.UserID {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "cannot bid on your own mission")
	}

	var req submitProposalRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_body", "request body must be JSON")
	}

	proposalRepo := repository.GetGlobalFactory().GetProposalRepository()

	plan := entitlements.NormalizePlan(userCtx.Plan)
	since := time.Now().Add(-24 * time.Hour)
	sent, err := proposalRepo.CountByFreelancerSince(userCtx.UserID, since)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not check proposal quota")
	}
	if limit := entitlements.MaxProposalsPerDay(plan); sent >= int64(limit) {
		if limit == 0 {
			return jsonError(c, fiber.StatusForbidden, "subscription_required",
				"sending proposals requires an active subscription")
		}
		return jsonError(c, fiber.StatusForbidden, "quota_exceeded",
			"daily proposal limit reached for plan "+string(plan))
	}

	proposal := &models.Proposal{
		MissionID:    mission.ID,
		FreelancerID: userCtx.UserID,
		Message:      strings.TrimSpace(req.Message),
		QuoteCents:   req.QuoteCents,
		DeliveryDays: req.DeliveryDays,
		Status:       models.ProposalStatusPending,
	}
	if err := proposal.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}
	if err := proposalRepo.Create(proposal); err != nil {
		// The unique index on (mission_id, freelancer_id) catches duplicates.
		return jsonError(c, fiber.StatusConflict, "duplicate_proposal", "you already submitted a proposal for this mission")
	}

	if mission.Creator != nil {
		subject := fmt.Sprintf("New proposal on %q", mission.Title)
		body := fmt.Sprintf("A freelancer quoted %.2f %s with delivery in %d days.\n",
			float64(proposal.QuoteCents)/100, strings.ToUpper(mission.Currency), proposal.DeliveryDays)
		go func(to string) {
			_ = mail.SendMail(to, subject, body)
		}(mission.Creator.Email)
	}

	return c.Status(fiber.StatusCreated).JSON(proposal)
}

// HandleListMissionProposals lists proposals on a mission, owner only.
func HandleListMissionProposals(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	missionRepo := repository.GetGlobalFactory().GetMissionRepository()
	mission, err := missionRepo.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "mission not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not load mission")
	}
	if mission.CreatorID != userCtx.UserID && !userCtx.IsAdmin {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "only the mission owner can view proposals")
	}

	proposals, err := repository.GetGlobalFactory().GetProposalRepository().ListByMission(mission.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not list proposals")
	}
	return c.JSON(fiber.Map{"proposals": proposals})
}

// HandleMyProposals lists the authenticated freelancer's proposals.
func HandleMyProposals(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	offset, limit := paginationParams(c)

	proposals, err := repository.GetGlobalFactory().GetProposalRepository().ListByFreelancer(userCtx.UserID, offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not list proposals")
	}
	return c.JSON(fiber.Map{"proposals": proposals})
}

// HandleAcceptProposal accepts one proposal: mission moves to IN_PROGRESS,
// siblings are rejected and a delivery is opened from the accepted quote.
func HandleAcceptProposal(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	proposalID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "proposal id must be numeric")
	}

	proposalRepo := repository.GetGlobalFactory().GetProposalRepository()
	proposal, err := proposalRepo.GetByID(uint(proposalID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "proposal not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not load proposal")
	}
	if proposal.Mission == nil || proposal.Mission.CreatorID != userCtx.UserID {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "only the mission owner can accept proposals")
	}

	deliveryRow, err := proposalRepo.Accept(proposal.ID)
	if err != nil {
		if errors.Is(err, repository.ErrProposalNotAcceptable) {
			return jsonError(c, fiber.StatusConflict, "invalid_state", "proposal can no longer be accepted")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not accept proposal")
	}

	if proposal.Freelancer != nil {
		subject := fmt.Sprintf("Your proposal on %q was accepted", proposal.Mission.Title)
		body := fmt.Sprintf("Upload a watermarked preview for delivery %s to get started.\n", deliveryRow.UUID)
		go func(to string) {
			_ = mail.SendMail(to, subject, body)
		}(proposal.Freelancer.Email)
	}

	return c.JSON(fiber.Map{
		"proposal_id": proposal.ID,
		"delivery":    deliveryRow,
	})
}
