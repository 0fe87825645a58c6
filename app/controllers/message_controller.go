package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/LucasPerrin/Crealance/app/models"
	"github.com/LucasPerrin/Crealance/app/repository"
	"github.com/LucasPerrin/Crealance/internal/pkg/delivery"
	"github.com/LucasPerrin/Crealance/internal/pkg/usercontext"
)

// missionCounterpart resolves the other participant of a mission's
// conversation. Messaging opens once a delivery binds the two parties.
func missionCounterpart(missionUUID string, callerID uint) (*models.Mission, uint, error) {
	mission, err := repository.GetGlobalFactory().GetMissionRepository().GetByUUID(missionUUID)
	if err != nil {
		return nil, 0, err
	}

	d, err := GetDeliveryController().store.GetByMissionID(mission.ID)
	if err != nil {
		return nil, 0, err
	}
	if !d.IsParticipant(callerID) {
		return nil, 0, delivery.ErrForbidden
	}
	if callerID == d.CreatorID {
		return mission, d.FreelancerID, nil
	}
	return mission, d.CreatorID, nil
}

// HandleSendMessage posts a message into a mission conversation.
func HandleSendMessage(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_body", "request body must be JSON")
	}

	mission, recipientID, err := missionCounterpart(c.Params("uuid"), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "no conversation for this mission")
		}
		if errors.Is(err, delivery.ErrForbidden) {
			return jsonError(c, fiber.StatusForbidden, "forbidden", "not a participant of this mission")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not load conversation")
	}

	message := &models.Message{
		MissionID:   mission.ID,
		SenderID:    userCtx.UserID,
		RecipientID: recipientID,
		Body:        strings.TrimSpace(req.Body),
	}
	if err := message.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}
	if err := repository.GetGlobalFactory().GetMessageRepository().Create(message); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not send message")
	}

	return c.Status(fiber.StatusCreated).JSON(message)
}

// HandleListMessages returns a mission conversation and marks the caller's
// incoming messages as read.
func HandleListMessages(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	mission, _, err := missionCounterpart(c.Params("uuid"), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "no conversation for this mission")
		}
		if errors.Is(err, delivery.ErrForbidden) {
			return jsonError(c, fiber.StatusForbidden, "forbidden", "not a participant of this mission")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not load conversation")
	}

	offset, limit := paginationParams(c)
	repo := repository.GetGlobalFactory().GetMessageRepository()
	messages, err := repo.ListByMission(mission.ID, offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not list messages")
	}

	_ = repo.MarkRead(mission.ID, userCtx.UserID)

	return c.JSON(fiber.Map{"messages": messages})
}

// HandleUnreadCount returns the caller's unread message count.
func HandleUnreadCount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	count, err := repository.GetGlobalFactory().GetMessageRepository().CountUnread(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not count messages")
	}
	return c.JSON(fiber.Map{"unread": count})
}
