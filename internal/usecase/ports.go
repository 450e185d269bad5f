package usecase

import (
	"context"

	"github.com/docshield/docshield"
	"github.com/docshield/docshield/policy"
)

// RoleRepository defines the durable wallet address to role store.
type RoleRepository interface {
	Get(ctx context.Context, address string) (docshield.WalletRole, error)
	IsOwner(ctx context.Context, address string) (bool, error)
	HasOwner(ctx context.Context) (bool, error)
	Owner(ctx context.Context) (docshield.WalletRole, error)
	// ClaimOwnership atomically makes address the owner. It returns
	// false when another wallet already holds ownership.
	ClaimOwnership(ctx context.Context, address string) (bool, error)
	Assign(ctx context.Context, address string, role docshield.Role, name *string) error
	Remove(ctx context.Context, address string) error
	List(ctx context.Context) ([]docshield.WalletRole, error)
}

// RequestRepository defines persistence for access requests.
type RequestRepository interface {
	Get(ctx context.Context, id string) (docshield.AccessRequest, error)
	// Submit replaces any pending request for address with a new one
	// in a single transaction.
	Submit(ctx context.Context, address string, name string, requested docshield.Role) (docshield.AccessRequest, error)
	// Approve assigns the granted role and marks the request approved
	// atomically; a failed assignment leaves the request pending.
	Approve(ctx context.Context, id string, granted docshield.Role) (docshield.AccessRequest, error)
	Decline(ctx context.Context, id string) (docshield.AccessRequest, error)
	ListPending(ctx context.Context) ([]docshield.AccessRequest, error)
	Latest(ctx context.Context, address string) (docshield.AccessRequest, error)
}

// DocumentRepository defines persistence for document fields and
// their per-role access rules.
type DocumentRepository interface {
	List(ctx context.Context) ([]docshield.Field, error)
	Get(ctx context.Context, id docshield.FieldID) (docshield.Field, error)
	Create(ctx context.Context, field docshield.Field) error
	Update(ctx context.Context, field docshield.Field) error
	Delete(ctx context.Context, id docshield.FieldID) error
	Rules(ctx context.Context) (policy.Table, error)
	SetRule(ctx context.Context, id docshield.FieldID, role docshield.Role, rule policy.Rule) error
}

// Rewriter encapsulates the external semantic rewrite service.
type Rewriter interface {
	Mask(ctx context.Context, content string, role string) (string, error)
}

// Publisher delivers change notifications after committed mutations.
type Publisher interface {
	Publish(ctx context.Context, channel string, event docshield.Event) error
}
