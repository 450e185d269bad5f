package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/docshield/docshield"
	"github.com/docshield/docshield/internal/domain"
	"github.com/docshield/docshield/internal/infra/database/models"
	"github.com/docshield/docshield/policy"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func toField(model models.Document) docshield.Field {
	return docshield.Field{
		ID:          docshield.FieldID(model.Key),
		Name:        model.Name,
		Value:       model.Value,
		Sensitivity: docshield.Sensitivity(model.Sensitivity),
	}
}

func toDocumentModel(field docshield.Field) models.Document {
	return models.Document{
		Key:         string(field.ID),
		Name:        field.Name,
		Value:       field.Value,
		Sensitivity: string(field.Sensitivity),
	}
}

func (r *DocumentRepository) List(ctx context.Context) ([]docshield.Field, error) {
	var rows []models.Document
	err := r.db.WithContext(ctx).Order("c_date").Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list document fields")
	}

	fields := make([]docshield.Field, 0, len(rows))
	for _, row := range rows {
		fields = append(fields, toField(row))
	}
	return fields, nil
}

func (r *DocumentRepository) Get(ctx context.Context, id docshield.FieldID) (docshield.Field, error) {
	var model models.Document
	err := r.db.WithContext(ctx).First(&model, "key = ?", string(id)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return docshield.Field{}, domain.NotFoundError{Resource: "document field"}
		}
		return docshield.Field{}, errors.Wrap(err, "failed to load document field")
	}
	return toField(model), nil
}

// Create inserts a field together with its initial rules: the founder
// tier sees it in full, everyone else is shut out until the owner
// opens it up.
func (r *DocumentRepository) Create(ctx context.Context, field docshield.Field) error {
	model := toDocumentModel(field)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}

		rules := []models.AccessRule{
			{DocumentKey: model.Key, Role: string(docshield.RoleFounder), CanView: true, Mask: string(docshield.MaskNone)},
			{DocumentKey: model.Key, Role: string(docshield.RoleEngineer), CanView: false, Mask: string(docshield.MaskNone)},
			{DocumentKey: model.Key, Role: string(docshield.RoleMarketing), CanView: false, Mask: string(docshield.MaskNone)},
		}
		return tx.Create(&rules).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ConflictError{Reason: "field already exists"}
		}
		return errors.Wrap(err, "failed to create document field")
	}
	return nil
}

func (r *DocumentRepository) Update(ctx context.Context, field docshield.Field) error {
	result := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("key = ?", string(field.ID)).
		Updates(map[string]any{
			"name":        field.Name,
			"value":       field.Value,
			"sensitivity": string(field.Sensitivity),
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update document field")
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "document field"}
	}
	return nil
}

// Delete removes a field. Its rules go with it through the cascade.
func (r *DocumentRepository) Delete(ctx context.Context, id docshield.FieldID) error {
	result := r.db.WithContext(ctx).Delete(&models.Document{}, "key = ?", string(id))
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete document field")
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "document field"}
	}
	return nil
}

func (r *DocumentRepository) Rules(ctx context.Context) (policy.Table, error) {
	var rows []models.AccessRule
	err := r.db.WithContext(ctx).Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load access rules")
	}

	table := policy.Table{}
	for _, row := range rows {
		table.Set(
			docshield.Role(row.Role),
			docshield.FieldID(row.DocumentKey),
			policy.Rule{CanView: row.CanView, Mask: docshield.MaskKind(row.Mask)},
		)
	}
	return table, nil
}

func (r *DocumentRepository) SetRule(ctx context.Context, id docshield.FieldID, role docshield.Role, rule policy.Rule) error {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("key = ?", string(id)).
		Count(&count).Error
	if err != nil {
		return errors.Wrap(err, "failed to check document field")
	}
	if count == 0 {
		return domain.NotFoundError{Resource: "document field"}
	}

	mask := rule.Mask
	if mask == "" {
		mask = docshield.MaskNone
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_key"}, {Name: "role"}},
		DoUpdates: clause.Assignments(map[string]any{"can_view": rule.CanView, "mask": string(mask)}),
	}).Create(&models.AccessRule{
		DocumentKey: string(id),
		Role:        string(role),
		CanView:     rule.CanView,
		Mask:        string(mask),
	}).Error
	if err != nil {
		return errors.Wrap(err, "failed to set access rule")
	}
	return nil
}

// Seed loads the built-in document and rule table when the store is
// empty. Existing data wins; the builtins are a bootstrap, not a reset.
func (r *DocumentRepository) Seed(ctx context.Context, fields []docshield.Field, table policy.Table) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Document{}).Count(&count).Error
	if err != nil {
		return errors.Wrap(err, "failed to count document fields")
	}
	if count > 0 {
		return nil
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, field := range fields {
			model := toDocumentModel(field)
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		}
		for role, rules := range table {
			for id, rule := range rules {
				mask := rule.Mask
				if mask == "" {
					mask = docshield.MaskNone
				}
				row := models.AccessRule{
					DocumentKey: string(id),
					Role:        string(role),
					CanView:     rule.CanView,
					Mask:        string(mask),
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to seed document store")
	}
	return nil
}
