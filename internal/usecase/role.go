package usecase

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/docshield/docshield"
	"github.com/docshield/docshield/internal/domain"
)

var tracer = otel.Tracer("usecase")

type RoleUsecase struct {
	repo   RoleRepository
	signal Publisher
}

func NewRoleUsecase(repo RoleRepository, signal Publisher) *RoleUsecase {
	return &RoleUsecase{
		repo:   repo,
		signal: signal,
	}
}

func (uc *RoleUsecase) notify(ctx context.Context, action string, key string, channels ...string) {
	event := docshield.Event{
		Action: action,
		Key:    key,
		At:     time.Now().UTC(),
	}
	for _, channel := range channels {
		event.Channel = channel
		if err := uc.signal.Publish(ctx, channel, event); err != nil {
			// Delivery is best effort; the mutation is already committed.
			trace.SpanFromContext(ctx).RecordError(errors.Wrap(err, "role change notification failed"))
		}
	}
}

// Lookup resolves the role record for a wallet address.
func (uc *RoleUsecase) Lookup(ctx context.Context, address string) (docshield.WalletRole, error) {
	normalized, err := docshield.NormalizeAddress(address)
	if err != nil {
		return docshield.WalletRole{}, err
	}
	return uc.repo.Get(ctx, normalized)
}

// Connect resolves the connecting wallet's role, claiming ownership
// when no owner exists yet. A wallet losing the claim race falls back
// to a plain lookup instead of retrying the claim.
func (uc *RoleUsecase) Connect(ctx context.Context, address string) (docshield.WalletRole, error) {
	ctx, span := tracer.Start(ctx, "Role.Usecase.Connect")
	defer span.End()

	normalized, err := docshield.NormalizeAddress(address)
	if err != nil {
		return docshield.WalletRole{}, err
	}

	record, err := uc.repo.Get(ctx, normalized)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return docshield.WalletRole{}, err
	}

	hasOwner, err := uc.repo.HasOwner(ctx)
	if err != nil {
		return docshield.WalletRole{}, err
	}
	if hasOwner {
		return docshield.WalletRole{}, domain.ErrNotFound
	}

	claimed, err := uc.repo.ClaimOwnership(ctx, normalized)
	if err != nil {
		return docshield.WalletRole{}, err
	}
	if claimed {
		uc.notify(ctx, docshield.EventInsert, normalized, docshield.ChannelRoles, docshield.ChannelRole(normalized))
	}

	// Either we became the owner or someone else just did; in both
	// cases the current store state answers the connect.
	return uc.repo.Get(ctx, normalized)
}

// ClaimOwnership attempts the first-connect ownership claim directly.
func (uc *RoleUsecase) ClaimOwnership(ctx context.Context, address string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Role.Usecase.ClaimOwnership")
	defer span.End()

	normalized, err := docshield.NormalizeAddress(address)
	if err != nil {
		return false, err
	}

	claimed, err := uc.repo.ClaimOwnership(ctx, normalized)
	if err != nil {
		return false, err
	}
	if claimed {
		uc.notify(ctx, docshield.EventInsert, normalized, docshield.ChannelRoles, docshield.ChannelRole(normalized))
	}
	return claimed, nil
}

// Owner returns the current owner record.
func (uc *RoleUsecase) Owner(ctx context.Context) (docshield.WalletRole, error) {
	return uc.repo.Owner(ctx)
}

func (uc *RoleUsecase) HasOwner(ctx context.Context) (bool, error) {
	return uc.repo.HasOwner(ctx)
}

func (uc *RoleUsecase) requireOwner(ctx context.Context, actor string, operation string) error {
	if actor == "" {
		return domain.PermissionDeniedError{Operation: operation}
	}
	normalized, err := docshield.NormalizeAddress(actor)
	if err != nil {
		return domain.PermissionDeniedError{Operation: operation}
	}
	isOwner, err := uc.repo.IsOwner(ctx, normalized)
	if err != nil {
		return err
	}
	if !isOwner {
		return domain.PermissionDeniedError{Operation: operation}
	}
	return nil
}

// Assign upserts a wallet's role. Owner only. Assigning the owner
// tier never grants the owner flag; ownership moves only through
// ClaimOwnership. The owner's own record is fixed at the founder
// tier and cannot be reassigned.
func (uc *RoleUsecase) Assign(ctx context.Context, actor string, address string, role docshield.Role, name *string) error {
	ctx, span := tracer.Start(ctx, "Role.Usecase.Assign")
	defer span.End()

	if err := uc.requireOwner(ctx, actor, "assign role"); err != nil {
		span.RecordError(err)
		return err
	}

	normalized, err := docshield.NormalizeAddress(address)
	if err != nil {
		return err
	}

	current, err := uc.repo.Get(ctx, normalized)
	if err == nil && current.IsOwner {
		return domain.ConflictError{Reason: "owner role cannot be reassigned"}
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	if err := uc.repo.Assign(ctx, normalized, role.AccessProfile(), name); err != nil {
		span.RecordError(err)
		return err
	}

	uc.notify(ctx, docshield.EventUpdate, normalized, docshield.ChannelRoles, docshield.ChannelRole(normalized))
	return nil
}

// Remove deletes a wallet's role. Owner only; the owner record itself
// cannot be removed.
func (uc *RoleUsecase) Remove(ctx context.Context, actor string, address string) error {
	ctx, span := tracer.Start(ctx, "Role.Usecase.Remove")
	defer span.End()

	if err := uc.requireOwner(ctx, actor, "remove role"); err != nil {
		span.RecordError(err)
		return err
	}

	normalized, err := docshield.NormalizeAddress(address)
	if err != nil {
		return err
	}

	if err := uc.repo.Remove(ctx, normalized); err != nil {
		span.RecordError(err)
		return err
	}

	uc.notify(ctx, docshield.EventDelete, normalized, docshield.ChannelRoles, docshield.ChannelRole(normalized))
	return nil
}

// List returns all assigned wallets in assignment order.
func (uc *RoleUsecase) List(ctx context.Context) ([]docshield.WalletRole, error) {
	return uc.repo.List(ctx)
}
