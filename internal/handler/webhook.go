package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"shop-checkout/internal/dto"
	"shop-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

type WebhookHandler struct {
	webhookService service.WebhookService
}

func NewWebhookHandler(webhookService service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

func (h *WebhookHandler) PaymentWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Missing data"})
	}

	err = h.webhookService.HandleWebhook(ctx, c.Request().Header, body)
	switch {
	case errors.Is(err, service.ErrInvalidSignature):
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid signature"})
	case errors.Is(err, service.ErrWebhookSecretMissing):
		c.Logger().Error("webhook secret is not configured")
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Server error"})
	case err != nil:
		return fmt.Errorf("handle webhook: %w", err)
	}

	return c.JSON(http.StatusOK, dto.WebhookAck{Success: true})
}
