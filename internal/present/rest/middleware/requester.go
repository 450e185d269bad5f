package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/docshield/docshield"
	"github.com/docshield/docshield/internal/domain"
)

var tracer = otel.Tracer("middleware")

// IdentifyRequester reads the wallet address header and, when it holds
// a valid address, attaches the normalized form to the request context.
// Requests without a usable address proceed anonymously; the usecases
// decide what anonymous callers may do.
func IdentifyRequester(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Middleware.IdentifyRequester")
		defer span.End()

		raw := c.Request().Header.Get(domain.RequesterAddressHeader)
		if raw != "" {
			normalized, err := docshield.NormalizeAddress(raw)
			if err != nil {
				span.RecordError(err)
			} else {
				ctx = context.WithValue(ctx, domain.RequesterAddressCtxKey, normalized)
				span.SetAttributes(attribute.String("RequesterAddress", normalized))
			}
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// Requester extracts the normalized address set by IdentifyRequester.
// Empty means anonymous.
func Requester(ctx context.Context) string {
	address, _ := ctx.Value(domain.RequesterAddressCtxKey).(string)
	return address
}
