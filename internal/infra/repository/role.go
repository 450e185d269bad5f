package repository

import (
	"context"
	"encoding/json"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/docshield/docshield"
	"github.com/docshield/docshield/internal/domain"
	"github.com/docshield/docshield/internal/infra/database/models"
)

const (
	// systemOwnerID keys the singleton ownership row.
	systemOwnerID = int64(1)

	roleCacheTTL = int32(60) // seconds
)

type RoleRepository struct {
	db *gorm.DB
	mc *memcache.Client
}

func NewRoleRepository(db *gorm.DB, mc *memcache.Client) *RoleRepository {
	return &RoleRepository{db: db, mc: mc}
}

func roleCacheKey(address string) string {
	return "wallet_role:" + address
}

func toWalletRole(model models.WalletRole) docshield.WalletRole {
	return docshield.WalletRole{
		Address: model.Address,
		Role:    docshield.Role(model.Role),
		IsOwner: model.IsOwner,
		Name:    model.Name,
	}
}

func (r *RoleRepository) cacheGet(address string) (docshield.WalletRole, bool) {
	if r.mc == nil {
		return docshield.WalletRole{}, false
	}
	item, err := r.mc.Get(roleCacheKey(address))
	if err != nil {
		return docshield.WalletRole{}, false
	}
	var record docshield.WalletRole
	if err := json.Unmarshal(item.Value, &record); err != nil {
		return docshield.WalletRole{}, false
	}
	return record, true
}

func (r *RoleRepository) cacheSet(record docshield.WalletRole) {
	if r.mc == nil {
		return
	}
	value, err := json.Marshal(record)
	if err != nil {
		return
	}
	r.mc.Set(&memcache.Item{
		Key:        roleCacheKey(record.Address),
		Value:      value,
		Expiration: roleCacheTTL,
	})
}

func (r *RoleRepository) cacheInvalidate(address string) {
	if r.mc == nil {
		return
	}
	r.mc.Delete(roleCacheKey(address))
}

func (r *RoleRepository) Get(ctx context.Context, address string) (docshield.WalletRole, error) {
	if record, ok := r.cacheGet(address); ok {
		return record, nil
	}

	var model models.WalletRole
	err := r.db.WithContext(ctx).First(&model, "address = ?", address).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return docshield.WalletRole{}, domain.NotFoundError{Resource: "wallet role"}
		}
		return docshield.WalletRole{}, errors.Wrap(err, "failed to load wallet role")
	}

	record := toWalletRole(model)
	r.cacheSet(record)
	return record, nil
}

func (r *RoleRepository) IsOwner(ctx context.Context, address string) (bool, error) {
	record, err := r.Get(ctx, address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return record.IsOwner, nil
}

func (r *RoleRepository) HasOwner(ctx context.Context) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SystemOwner{}).
		Where("id = ?", systemOwnerID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check ownership")
	}
	return count > 0, nil
}

func (r *RoleRepository) Owner(ctx context.Context) (docshield.WalletRole, error) {
	var model models.WalletRole
	err := r.db.WithContext(ctx).First(&model, "is_owner = ?", true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return docshield.WalletRole{}, domain.NotFoundError{Resource: "owner"}
		}
		return docshield.WalletRole{}, errors.Wrap(err, "failed to load owner")
	}
	return toWalletRole(model), nil
}

// ClaimOwnership inserts the singleton owner row with a do-nothing
// conflict clause. The row either lands or it doesn't; a race between
// two first-connectors produces exactly one owner.
func (r *RoleRepository) ClaimOwnership(ctx context.Context, address string) (bool, error) {
	claimed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			DoNothing: true,
		}).Create(&models.SystemOwner{
			ID:      systemOwnerID,
			Address: address,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		claimed = true

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.Assignments(map[string]any{"role": string(docshield.RoleFounder), "is_owner": true}),
		}).Create(&models.WalletRole{
			Address: address,
			Role:    string(docshield.RoleFounder),
			IsOwner: true,
		}).Error
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to claim ownership")
	}
	if claimed {
		r.cacheInvalidate(address)
	}
	return claimed, nil
}

// Assign upserts a role record. It deliberately never writes the
// owner flag: ownership moves only through ClaimOwnership.
func (r *RoleRepository) Assign(ctx context.Context, address string, role docshield.Role, name *string) error {
	updates := map[string]any{"role": string(role)}
	if name != nil {
		updates["name"] = *name
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&models.WalletRole{
		Address: address,
		Role:    string(role),
		Name:    name,
	}).Error
	if err != nil {
		return errors.Wrap(err, "failed to assign role")
	}

	r.cacheInvalidate(address)
	return nil
}

func (r *RoleRepository) Remove(ctx context.Context, address string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.WalletRole
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "address = ?", address).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError{Resource: "wallet role"}
			}
			return err
		}
		if model.IsOwner {
			return domain.ConflictError{Reason: "owner role cannot be removed"}
		}
		return tx.Delete(&models.WalletRole{}, "address = ?", address).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
			return err
		}
		return errors.Wrap(err, "failed to remove role")
	}

	r.cacheInvalidate(address)
	return nil
}

func (r *RoleRepository) List(ctx context.Context) ([]docshield.WalletRole, error) {
	var rows []models.WalletRole
	err := r.db.WithContext(ctx).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list wallet roles")
	}

	records := make([]docshield.WalletRole, 0, len(rows))
	for _, row := range rows {
		records = append(records, toWalletRole(row))
	}
	return records, nil
}
