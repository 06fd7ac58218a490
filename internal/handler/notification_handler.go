package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/pair-notify/internal/domain"
	"github.com/kursadbilgin/pair-notify/internal/observability"
	"github.com/kursadbilgin/pair-notify/internal/service"
)

const publishWarning = "record stored but immediate delivery was not queued; it will be retried by the sweeper"

type RecordService interface {
	Create(ctx context.Context, input service.CreateRecordInput) (*service.CreateRecordResult, error)
	Get(ctx context.Context, key domain.RecordKey) (*domain.NotificationRecord, error)
}

type NotificationHandler struct {
	service RecordService
}

func NewNotificationHandler(service RecordService) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("record service is required")
	}
	return &NotificationHandler{service: service}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service RecordService) error {
	h, err := NewNotificationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/relationships/:relationshipId/notifications", h.CreateNotification)
	v1.Get("/relationships/:relationshipId/notifications/:notificationId", h.GetNotification)

	return nil
}

type createNotificationRequest struct {
	NotificationID string  `json:"notificationId"`
	ToUID          string  `json:"toUid"`
	Title          *string `json:"title"`
	Text           string  `json:"text"`
}

type notificationResponse struct {
	RelationshipID string     `json:"relationshipId"`
	NotificationID string     `json:"notificationId"`
	ToUID          string     `json:"toUid"`
	Title          *string    `json:"title,omitempty"`
	Text           string     `json:"text"`
	Sent           bool       `json:"sent"`
	RetryCount     int        `json:"retryCount"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
	LastTriedAt    *time.Time `json:"lastTriedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt,omitempty"`
	Warning        string     `json:"warning,omitempty"`
}

func (h *NotificationHandler) CreateNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Create(requestContext(c), service.CreateRecordInput{
		RelationshipID: c.Params("relationshipId"),
		NotificationID: req.NotificationID,
		ToUID:          req.ToUID,
		Title:          req.Title,
		Text:           req.Text,
	})
	if err != nil {
		return toHTTPError(err)
	}

	resp := toNotificationResponse(result.Record)
	switch {
	case !result.Created:
		return c.Status(fiber.StatusOK).JSON(resp)
	case !result.Published:
		resp.Warning = publishWarning
		return c.Status(fiber.StatusAccepted).JSON(resp)
	default:
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	record, err := h.service.Get(requestContext(c), domain.RecordKey{
		RelationshipID: strings.TrimSpace(c.Params("relationshipId")),
		NotificationID: strings.TrimSpace(c.Params("notificationId")),
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(record))
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if id := requestCorrelationID(c); id != "" {
		ctx = observability.WithCorrelationID(ctx, id)
	}
	return ctx
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toNotificationResponse(r *domain.NotificationRecord) notificationResponse {
	if r == nil {
		return notificationResponse{}
	}

	return notificationResponse{
		RelationshipID: r.Key.RelationshipID,
		NotificationID: r.Key.NotificationID,
		ToUID:          r.ToUID,
		Title:          r.Title,
		Text:           r.Text,
		Sent:           r.Sent,
		RetryCount:     r.RetryCount,
		SentAt:         r.SentAt,
		LastTriedAt:    r.LastTriedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
