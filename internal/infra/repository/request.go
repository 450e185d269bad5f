package repository

import (
	"context"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/docshield/docshield"
	"github.com/docshield/docshield/internal/domain"
	"github.com/docshield/docshield/internal/infra/database/models"
)

type RequestRepository struct {
	db *gorm.DB
	mc *memcache.Client
}

func NewRequestRepository(db *gorm.DB, mc *memcache.Client) *RequestRepository {
	return &RequestRepository{db: db, mc: mc}
}

func toAccessRequest(model models.AccessRequest) docshield.AccessRequest {
	return docshield.AccessRequest{
		ID:            model.ID,
		Address:       model.Address,
		Name:          model.Name,
		RequestedRole: docshield.Role(model.RequestedRole),
		Status:        docshield.RequestStatus(model.Status),
		CreatedAt:     model.CDate,
		ReviewedAt:    model.ReviewedAt,
	}
}

func (r *RequestRepository) Get(ctx context.Context, id string) (docshield.AccessRequest, error) {
	var model models.AccessRequest
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return docshield.AccessRequest{}, domain.NotFoundError{Resource: "access request"}
		}
		return docshield.AccessRequest{}, errors.Wrap(err, "failed to load access request")
	}
	return toAccessRequest(model), nil
}

// Submit files a new pending request. Any earlier pending request from
// the same wallet is dropped in the same transaction, so a wallet holds
// at most one pending request at a time.
func (r *RequestRepository) Submit(ctx context.Context, address string, name string, requested docshield.Role) (docshield.AccessRequest, error) {
	model := models.AccessRequest{
		ID:            uuid.NewString(),
		Address:       address,
		Name:          name,
		RequestedRole: string(requested),
		Status:        string(docshield.RequestPending),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Delete(&models.AccessRequest{}, "address = ? AND status = ?", address, string(docshield.RequestPending)).Error
		if err != nil {
			return err
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return docshield.AccessRequest{}, errors.Wrap(err, "failed to submit access request")
	}

	created, err := r.Get(ctx, model.ID)
	if err != nil {
		return docshield.AccessRequest{}, err
	}
	return created, nil
}

// Approve marks the request approved and grants the role in one
// transaction. When the role write fails the whole review rolls back
// and the request stays pending.
func (r *RequestRepository) Approve(ctx context.Context, id string, granted docshield.Role) (docshield.AccessRequest, error) {
	var approved models.AccessRequest

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.AccessRequest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError{Resource: "access request"}
			}
			return err
		}
		if model.Status != string(docshield.RequestPending) {
			return domain.ConflictError{Reason: "request already reviewed"}
		}

		updates := map[string]any{"role": string(granted)}
		var name *string
		if model.Name != "" {
			name = &model.Name
			updates["name"] = model.Name
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.Assignments(updates),
		}).Create(&models.WalletRole{
			Address: model.Address,
			Role:    string(granted),
			Name:    name,
		}).Error
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		err = tx.Model(&models.AccessRequest{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":         string(docshield.RequestApproved),
				"requested_role": string(granted),
				"reviewed_at":    now,
			}).Error
		if err != nil {
			return err
		}

		model.Status = string(docshield.RequestApproved)
		model.RequestedRole = string(granted)
		model.ReviewedAt = &now
		approved = model
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
			return docshield.AccessRequest{}, err
		}
		return docshield.AccessRequest{}, errors.Wrap(err, "failed to approve access request")
	}

	// The role write above bypasses RoleRepository, so drop its cache
	// entry here to keep lookups fresh.
	if r.mc != nil {
		r.mc.Delete(roleCacheKey(approved.Address))
	}

	return toAccessRequest(approved), nil
}

// Decline marks the request declined without touching roles.
func (r *RequestRepository) Decline(ctx context.Context, id string) (docshield.AccessRequest, error) {
	var declined models.AccessRequest

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.AccessRequest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError{Resource: "access request"}
			}
			return err
		}
		if model.Status != string(docshield.RequestPending) {
			return domain.ConflictError{Reason: "request already reviewed"}
		}

		now := time.Now().UTC()
		err = tx.Model(&models.AccessRequest{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":      string(docshield.RequestDeclined),
				"reviewed_at": now,
			}).Error
		if err != nil {
			return err
		}

		model.Status = string(docshield.RequestDeclined)
		model.ReviewedAt = &now
		declined = model
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
			return docshield.AccessRequest{}, err
		}
		return docshield.AccessRequest{}, errors.Wrap(err, "failed to decline access request")
	}

	return toAccessRequest(declined), nil
}

func (r *RequestRepository) ListPending(ctx context.Context) ([]docshield.AccessRequest, error) {
	var rows []models.AccessRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", string(docshield.RequestPending)).
		Order("c_date desc").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pending requests")
	}

	requests := make([]docshield.AccessRequest, 0, len(rows))
	for _, row := range rows {
		requests = append(requests, toAccessRequest(row))
	}
	return requests, nil
}

func (r *RequestRepository) Latest(ctx context.Context, address string) (docshield.AccessRequest, error) {
	var model models.AccessRequest
	err := r.db.WithContext(ctx).
		Where("address = ?", address).
		Order("c_date desc").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return docshield.AccessRequest{}, domain.NotFoundError{Resource: "access request"}
		}
		return docshield.AccessRequest{}, errors.Wrap(err, "failed to load latest request")
	}
	return toAccessRequest(model), nil
}
