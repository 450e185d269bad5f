package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/docshield/docshield"
	"github.com/docshield/docshield/internal/domain"
	"github.com/docshield/docshield/policy"
)

func setupDocumentUsecase(t *testing.T) (*DocumentUsecase, *mockDocRepo) {
	t.Helper()
	roles := newMockRoleRepo()
	docs := newMockDocRepo()
	roleUC := NewRoleUsecase(roles, &mockPublisher{})
	if _, err := roleUC.Connect(context.Background(), addrAlice); err != nil {
		t.Fatalf("owner setup failed: %v", err)
	}
	return NewDocumentUsecase(docs, roles, &mockPublisher{}), docs
}

func TestDocumentMutationsRequireOwner(t *testing.T) {
	uc, docs := setupDocumentUsecase(t)
	ctx := context.Background()

	field := docshield.Field{ID: "headcount", Name: "Headcount", Value: "42", Sensitivity: docshield.SensitivitySensitive}
	if err := uc.Create(ctx, addrBob, field); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if len(docs.fields) != len(docshield.SeedFields()) {
		t.Fatal("rejected create must not touch the store")
	}

	if err := uc.SetRule(ctx, addrBob, "revenue", docshield.RoleEngineer, policy.Rule{CanView: true}); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestDocumentCreateAndRuleUpdate(t *testing.T) {
	uc, _ := setupDocumentUsecase(t)
	ctx := context.Background()

	field := docshield.Field{ID: "headcount", Name: "Headcount", Value: "42", Sensitivity: docshield.SensitivitySensitive}
	if err := uc.Create(ctx, addrAlice, field); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := uc.SetRule(ctx, addrAlice, "headcount", docshield.RoleEngineer, policy.Rule{CanView: true, Mask: docshield.MaskPartial}); err != nil {
		t.Fatalf("set rule failed: %v", err)
	}

	table, err := uc.Table(ctx)
	if err != nil {
		t.Fatalf("table failed: %v", err)
	}
	if got := policy.Evaluate(table, docshield.RoleEngineer, "headcount"); got != docshield.DecisionPartial {
		t.Fatalf("expected partial after rule update, got %s", got)
	}
	// Other roles stay fail-closed for the new field.
	if got := policy.Evaluate(table, docshield.RoleMarketing, "headcount"); got != docshield.DecisionDenied {
		t.Fatalf("expected denied for unmapped role, got %s", got)
	}
}

func TestDocumentCreateValidates(t *testing.T) {
	uc, _ := setupDocumentUsecase(t)
	ctx := context.Background()

	bad := docshield.Field{ID: "", Name: "X", Value: "1", Sensitivity: docshield.SensitivityPublic}
	if err := uc.Create(ctx, addrAlice, bad); err == nil {
		t.Fatal("expected validation error for missing id")
	}

	bad = docshield.Field{ID: "x", Name: "X", Value: "1", Sensitivity: "top-secret"}
	if err := uc.Create(ctx, addrAlice, bad); err == nil {
		t.Fatal("expected validation error for unknown sensitivity")
	}
}
