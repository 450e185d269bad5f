package models

import (
	"time"
)

// WalletRole is one wallet address to role assignment. The address is
// stored in its canonical lowercase form.
type WalletRole struct {
	ID      int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	Address string  `json:"address" gorm:"type:text;uniqueIndex;not null"`
	Role    string  `json:"role" gorm:"type:text;not null"`
	IsOwner bool    `json:"isOwner" gorm:"type:boolean;not null;default:false"`
	Name    *string `json:"name,omitempty" gorm:"type:text"`

	CDate time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

// SystemOwner is a singleton row acting as the compare-and-set guard
// for the first-connect ownership claim. Only ID 1 ever exists.
type SystemOwner struct {
	ID      int64     `json:"id" gorm:"primaryKey"`
	Address string    `json:"address" gorm:"type:text;not null"`
	CDate   time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// AccessRequest is a wallet's ask for a role, reviewed by the owner.
type AccessRequest struct {
	ID            string     `json:"id" gorm:"primaryKey;type:text"`
	Address       string     `json:"address" gorm:"type:text;index;not null"`
	Name          string     `json:"name" gorm:"type:text"`
	RequestedRole string     `json:"requestedRole" gorm:"type:text;not null"`
	Status        string     `json:"status" gorm:"type:text;index;not null"`
	ReviewedAt    *time.Time `json:"reviewedAt,omitempty" gorm:"type:timestamp with time zone"`

	CDate time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// Document is one field of the protected document.
type Document struct {
	Key         string `json:"key" gorm:"primaryKey;type:text"`
	Name        string `json:"name" gorm:"type:text;not null"`
	Value       string `json:"value" gorm:"type:text"`
	Sensitivity string `json:"sensitivity" gorm:"type:text;not null"`

	CDate time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

// AccessRule is one (document, role) policy row.
type AccessRule struct {
	DocumentKey string   `json:"documentKey" gorm:"type:text;primaryKey"`
	Document    Document `json:"-" gorm:"foreignKey:DocumentKey;references:Key;constraint:OnDelete:CASCADE;"`
	Role        string   `json:"role" gorm:"type:text;primaryKey"`
	CanView     bool     `json:"canView" gorm:"type:boolean;not null;default:false"`
	Mask        string   `json:"mask" gorm:"type:text;not null;default:'none'"`
}
