package gateway

import (
	"context"

	"go.opentelemetry.io/otel"

	"github.com/docshield/docshield/client"
)

var tracer = otel.Tracer("gateway")

// RewriteGateway adapts the rewrite service client to the usecase port.
type RewriteGateway struct {
	client *client.Client
}

func NewRewriteGateway(c *client.Client) *RewriteGateway {
	return &RewriteGateway{client: c}
}

func (g *RewriteGateway) Mask(ctx context.Context, content string, role string) (string, error) {
	ctx, span := tracer.Start(ctx, "Rewrite.Gateway.Mask")
	defer span.End()

	masked, err := g.client.Mask(ctx, content, role)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return masked, nil
}
