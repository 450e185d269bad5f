package usecase

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/docshield/docshield"
	"github.com/docshield/docshield/internal/domain"
	"github.com/docshield/docshield/mask"
	"github.com/docshield/docshield/policy"
)

const (
	semanticCacheTTL     = 30 * time.Minute
	semanticCacheCleanup = 1 * time.Hour
)

// FieldView is a document field rendered for one role. Value already
// has the decided transform applied; semantic fields start empty and
// are filled on demand through Unmask.
type FieldView struct {
	ID          docshield.FieldID     `json:"id"`
	Name        string                `json:"name"`
	Sensitivity docshield.Sensitivity `json:"sensitivity"`
	Decision    docshield.Decision    `json:"decision"`
	Value       string                `json:"value"`
}

type ViewUsecase struct {
	docs     DocumentRepository
	rewriter Rewriter
	semantic *gocache.Cache
}

func NewViewUsecase(docs DocumentRepository, rewriter Rewriter) *ViewUsecase {
	return &ViewUsecase{
		docs:     docs,
		rewriter: rewriter,
		semantic: gocache.New(semanticCacheTTL, semanticCacheCleanup),
	}
}

// Render evaluates the whole document for a role and applies the
// local transforms. It never calls the rewrite service.
func (uc *ViewUsecase) Render(ctx context.Context, role docshield.Role) ([]FieldView, error) {
	fields, err := uc.docs.List(ctx)
	if err != nil {
		return nil, err
	}
	table, err := uc.docs.Rules(ctx)
	if err != nil {
		return nil, err
	}

	decisions := policy.EvaluateDocument(table, role, fields)

	views := make([]FieldView, 0, len(fields))
	for _, field := range fields {
		view := FieldView{
			ID:          field.ID,
			Name:        field.Name,
			Sensitivity: field.Sensitivity,
			Decision:    decisions[field.ID],
		}
		switch view.Decision {
		case docshield.DecisionFull:
			view.Value = field.Value
		case docshield.DecisionPartial:
			view.Value = mask.Partial(field.Value)
		case docshield.DecisionSemantic:
			// Filled lazily via Unmask.
		case docshield.DecisionDenied:
			view.Value = mask.DeniedMarker
		}
		views = append(views, view)
	}
	return views, nil
}

func semanticCacheKey(role docshield.Role, id docshield.FieldID) string {
	return string(role) + "/" + string(id)
}

// Unmask fetches the semantic rewrite of a field for a role. Results
// are cached for the viewing session since the rewrite service is not
// deterministic. Roles without a semantic grant are refused.
func (uc *ViewUsecase) Unmask(ctx context.Context, role docshield.Role, id docshield.FieldID) (string, error) {
	ctx, span := tracer.Start(ctx, "View.Usecase.Unmask")
	defer span.End()

	table, err := uc.docs.Rules(ctx)
	if err != nil {
		return "", err
	}
	if policy.Evaluate(table, role, id) != docshield.DecisionSemantic {
		return "", domain.PermissionDeniedError{Operation: "semantic unmask"}
	}

	key := semanticCacheKey(role, id)
	if cached, ok := uc.semantic.Get(key); ok {
		return cached.(string), nil
	}

	field, err := uc.docs.Get(ctx, id)
	if err != nil {
		return "", err
	}

	masked, err := uc.rewriter.Mask(ctx, field.Value, string(role))
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	uc.semantic.Set(key, masked, gocache.DefaultExpiration)
	return masked, nil
}

// Forget drops a cached rewrite, forcing the next Unmask to call the
// service again.
func (uc *ViewUsecase) Forget(role docshield.Role, id docshield.FieldID) {
	uc.semantic.Delete(semanticCacheKey(role, id))
}
