package middleware

import (
	"bytes"
	"io"
	"net/http"
	"shop-checkout/internal/dto"
	"shop-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

// RequireWebhookHeaders rejects provider callbacks that lack the signature,
// the timestamp or a body. The body is buffered and handed on unchanged.
func RequireWebhookHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Header.Get(service.HeaderWebhookSignature) == "" || req.Header.Get(service.HeaderWebhookTimestamp) == "" {
				return missingData(c)
			}

			body, err := io.ReadAll(req.Body)
			if err != nil || len(bytes.TrimSpace(body)) == 0 {
				return missingData(c)
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			return next(c)
		}
	}
}

func missingData(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Missing data"})
}
