package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"

	"github.com/docshield/docshield"
	"github.com/docshield/docshield/internal/domain"
)

type RequestUsecase struct {
	requests RequestRepository
	roles    RoleRepository
	signal   Publisher
}

func NewRequestUsecase(requests RequestRepository, roles RoleRepository, signal Publisher) *RequestUsecase {
	return &RequestUsecase{
		requests: requests,
		roles:    roles,
		signal:   signal,
	}
}

func (uc *RequestUsecase) notify(ctx context.Context, action string, key string, channels ...string) {
	event := docshield.Event{
		Action: action,
		Key:    key,
		At:     time.Now().UTC(),
	}
	for _, channel := range channels {
		event.Channel = channel
		if err := uc.signal.Publish(ctx, channel, event); err != nil {
			trace.SpanFromContext(ctx).RecordError(errors.Wrap(err, "request change notification failed"))
		}
	}
}

func (uc *RequestUsecase) requireOwner(ctx context.Context, actor string, operation string) error {
	if actor == "" {
		return domain.PermissionDeniedError{Operation: operation}
	}
	normalized, err := docshield.NormalizeAddress(actor)
	if err != nil {
		return domain.PermissionDeniedError{Operation: operation}
	}
	isOwner, err := uc.roles.IsOwner(ctx, normalized)
	if err != nil {
		return err
	}
	if !isOwner {
		return domain.PermissionDeniedError{Operation: operation}
	}
	return nil
}

// Submit files a role request for a wallet with no current role.
// A pending request from the same wallet is superseded.
func (uc *RequestUsecase) Submit(ctx context.Context, address string, name string, requested docshield.Role) (docshield.AccessRequest, error) {
	ctx, span := tracer.Start(ctx, "Request.Usecase.Submit")
	defer span.End()

	normalized, err := docshield.NormalizeAddress(address)
	if err != nil {
		return docshield.AccessRequest{}, err
	}

	if requested == docshield.RoleOwner {
		return docshield.AccessRequest{}, domain.ConflictError{Reason: "ownership cannot be requested"}
	}
	if _, ok := docshield.ParseRole(string(requested)); !ok {
		return docshield.AccessRequest{}, fmt.Errorf("unknown role: %s", requested)
	}

	_, err = uc.roles.Get(ctx, normalized)
	if err == nil {
		return docshield.AccessRequest{}, domain.ConflictError{Reason: "wallet already has a role"}
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return docshield.AccessRequest{}, err
	}

	request, err := uc.requests.Submit(ctx, normalized, name, requested)
	if err != nil {
		span.RecordError(err)
		return docshield.AccessRequest{}, err
	}

	uc.notify(ctx, docshield.EventInsert, request.ID, docshield.ChannelRequests, docshield.ChannelRequest(normalized))
	return request, nil
}

// Approve grants a pending request. Owner only. An override role wins
// over the requested one; the granted role and review time are
// recorded on the request itself.
func (uc *RequestUsecase) Approve(ctx context.Context, actor string, id string, override *docshield.Role) (docshield.AccessRequest, error) {
	ctx, span := tracer.Start(ctx, "Request.Usecase.Approve")
	defer span.End()

	if err := uc.requireOwner(ctx, actor, "approve request"); err != nil {
		span.RecordError(err)
		return docshield.AccessRequest{}, err
	}

	request, err := uc.requests.Get(ctx, id)
	if err != nil {
		return docshield.AccessRequest{}, err
	}
	if request.Status != docshield.RequestPending {
		return docshield.AccessRequest{}, domain.ConflictError{Reason: "request already reviewed"}
	}

	granted := request.RequestedRole
	if override != nil {
		granted = *override
	}
	granted = granted.AccessProfile()

	approved, err := uc.requests.Approve(ctx, id, granted)
	if err != nil {
		span.RecordError(err)
		return docshield.AccessRequest{}, err
	}

	uc.notify(ctx, docshield.EventUpdate, approved.ID, docshield.ChannelRequests, docshield.ChannelRequest(approved.Address))
	uc.notify(ctx, docshield.EventUpdate, approved.Address, docshield.ChannelRoles, docshield.ChannelRole(approved.Address))
	return approved, nil
}

// Decline rejects a pending request without touching roles. Owner only.
func (uc *RequestUsecase) Decline(ctx context.Context, actor string, id string) (docshield.AccessRequest, error) {
	ctx, span := tracer.Start(ctx, "Request.Usecase.Decline")
	defer span.End()

	if err := uc.requireOwner(ctx, actor, "decline request"); err != nil {
		span.RecordError(err)
		return docshield.AccessRequest{}, err
	}

	request, err := uc.requests.Get(ctx, id)
	if err != nil {
		return docshield.AccessRequest{}, err
	}
	if request.Status != docshield.RequestPending {
		return docshield.AccessRequest{}, domain.ConflictError{Reason: "request already reviewed"}
	}

	declined, err := uc.requests.Decline(ctx, id)
	if err != nil {
		span.RecordError(err)
		return docshield.AccessRequest{}, err
	}

	uc.notify(ctx, docshield.EventUpdate, declined.ID, docshield.ChannelRequests, docshield.ChannelRequest(declined.Address))
	return declined, nil
}

// ListPending returns pending requests newest-first. Owner only.
func (uc *RequestUsecase) ListPending(ctx context.Context, actor string) ([]docshield.AccessRequest, error) {
	if err := uc.requireOwner(ctx, actor, "list pending requests"); err != nil {
		return nil, err
	}
	return uc.requests.ListPending(ctx)
}

// Status returns the most recent request for a wallet.
func (uc *RequestUsecase) Status(ctx context.Context, address string) (docshield.AccessRequest, error) {
	normalized, err := docshield.NormalizeAddress(address)
	if err != nil {
		return docshield.AccessRequest{}, err
	}
	return uc.requests.Latest(ctx, normalized)
}
