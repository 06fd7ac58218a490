package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// TokenRegistrar stores the push token the mobile app reports for a user.
type TokenRegistrar interface {
	SetToken(ctx context.Context, uid string, token string) error
}

type TokenHandler struct {
	tokens TokenRegistrar
}

func NewTokenHandler(tokens TokenRegistrar) (*TokenHandler, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token registrar is required")
	}
	return &TokenHandler{tokens: tokens}, nil
}

func RegisterTokenRoutes(router fiber.Router, tokens TokenRegistrar) error {
	h, err := NewTokenHandler(tokens)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Put("/users/:uid/push-token", h.PutToken)
	v1.Delete("/users/:uid/push-token", h.DeleteToken)

	return nil
}

type putTokenRequest struct {
	Token string `json:"token"`
}

func (h *TokenHandler) PutToken(c *fiber.Ctx) error {
	var req putTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Token) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "token is required")
	}

	if err := h.tokens.SetToken(requestContext(c), strings.TrimSpace(c.Params("uid")), req.Token); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteToken clears the token on logout; pending records for the user stay
// eligible for the sweep until a new token is registered.
func (h *TokenHandler) DeleteToken(c *fiber.Ctx) error {
	if err := h.tokens.SetToken(requestContext(c), strings.TrimSpace(c.Params("uid")), ""); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
