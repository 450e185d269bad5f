package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"

	"github.com/docshield/docshield"
	"github.com/docshield/docshield/internal/domain"
	"github.com/docshield/docshield/policy"
)

// FieldWithRules pairs a document field with its full rule row,
// for the owner's management view.
type FieldWithRules struct {
	docshield.Field
	Rules map[docshield.Role]policy.Rule `json:"rules"`
}

type DocumentUsecase struct {
	docs   DocumentRepository
	roles  RoleRepository
	signal Publisher
}

func NewDocumentUsecase(docs DocumentRepository, roles RoleRepository, signal Publisher) *DocumentUsecase {
	return &DocumentUsecase{
		docs:   docs,
		roles:  roles,
		signal: signal,
	}
}

func (uc *DocumentUsecase) notify(ctx context.Context, action string, key string) {
	event := docshield.Event{
		Channel: docshield.ChannelDocuments,
		Action:  action,
		Key:     key,
		At:      time.Now().UTC(),
	}
	if err := uc.signal.Publish(ctx, docshield.ChannelDocuments, event); err != nil {
		trace.SpanFromContext(ctx).RecordError(errors.Wrap(err, "document change notification failed"))
	}
}

func (uc *DocumentUsecase) requireOwner(ctx context.Context, actor string, operation string) error {
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

// Fields returns the document definition in stable order.
func (uc *DocumentUsecase) Fields(ctx context.Context) ([]docshield.Field, error) {
	return uc.docs.List(ctx)
}

// Table returns the current policy table backing the evaluator.
func (uc *DocumentUsecase) Table(ctx context.Context) (policy.Table, error) {
	return uc.docs.Rules(ctx)
}

// ListWithRules returns fields with all their access rules. Owner only.
func (uc *DocumentUsecase) ListWithRules(ctx context.Context, actor string) ([]FieldWithRules, error) {
	if err := uc.requireOwner(ctx, actor, "list document rules"); err != nil {
		return nil, err
	}

	fields, err := uc.docs.List(ctx)
	if err != nil {
		return nil, err
	}
	table, err := uc.docs.Rules(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]FieldWithRules, 0, len(fields))
	for _, field := range fields {
		rules := make(map[docshield.Role]policy.Rule)
		for role, fieldRules := range table {
			if rule, ok := fieldRules[field.ID]; ok {
				rules[role] = rule
			}
		}
		result = append(result, FieldWithRules{Field: field, Rules: rules})
	}
	return result, nil
}

func validateField(field docshield.Field) error {
	if field.ID == "" {
		return fmt.Errorf("field id is required")
	}
	if field.Name == "" {
		return fmt.Errorf("field name is required")
	}
	if _, ok := docshield.ParseSensitivity(string(field.Sensitivity)); !ok {
		return fmt.Errorf("unknown sensitivity: %s", field.Sensitivity)
	}
	return nil
}

// Create adds a document field with fail-closed default rules. Owner only.
func (uc *DocumentUsecase) Create(ctx context.Context, actor string, field docshield.Field) error {
	ctx, span := tracer.Start(ctx, "Document.Usecase.Create")
	defer span.End()

	if err := uc.requireOwner(ctx, actor, "create document field"); err != nil {
		span.RecordError(err)
		return err
	}
	if err := validateField(field); err != nil {
		return err
	}

	if err := uc.docs.Create(ctx, field); err != nil {
		span.RecordError(err)
		return err
	}

	uc.notify(ctx, docshield.EventInsert, string(field.ID))
	return nil
}

// Update replaces a field's name, value and sensitivity. Owner only.
func (uc *DocumentUsecase) Update(ctx context.Context, actor string, field docshield.Field) error {
	ctx, span := tracer.Start(ctx, "Document.Usecase.Update")
	defer span.End()

	if err := uc.requireOwner(ctx, actor, "update document field"); err != nil {
		span.RecordError(err)
		return err
	}
	if err := validateField(field); err != nil {
		return err
	}

	if err := uc.docs.Update(ctx, field); err != nil {
		span.RecordError(err)
		return err
	}

	uc.notify(ctx, docshield.EventUpdate, string(field.ID))
	return nil
}

// Delete removes a field and its rules. Owner only.
func (uc *DocumentUsecase) Delete(ctx context.Context, actor string, id docshield.FieldID) error {
	ctx, span := tracer.Start(ctx, "Document.Usecase.Delete")
	defer span.End()

	if err := uc.requireOwner(ctx, actor, "delete document field"); err != nil {
		span.RecordError(err)
		return err
	}

	if err := uc.docs.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}

	uc.notify(ctx, docshield.EventDelete, string(id))
	return nil
}

// SetRule upserts one access rule. Owner only.
func (uc *DocumentUsecase) SetRule(ctx context.Context, actor string, id docshield.FieldID, role docshield.Role, rule policy.Rule) error {
	ctx, span := tracer.Start(ctx, "Document.Usecase.SetRule")
	defer span.End()

	if err := uc.requireOwner(ctx, actor, "set access rule"); err != nil {
		span.RecordError(err)
		return err
	}
	if _, ok := docshield.ParseRole(string(role)); !ok {
		return fmt.Errorf("unknown role: %s", role)
	}

	if err := uc.docs.SetRule(ctx, id, role, rule); err != nil {
		span.RecordError(err)
		return err
	}

	uc.notify(ctx, docshield.EventUpdate, string(id))
	return nil
}
