package models

import "time"

// Platform is a client system that submits jobs with a sealed credential.
type Platform struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	Name          string `gorm:"size:64;not null;uniqueIndex"`
	PublicKey     string `gorm:"type:text"`
	RestrictPaths string `gorm:"type:text"` // comma separated, empty for none
	ForceTagID    *uint
	CreatedAt     time.Time
}

// InterfaceToken is a short-lived bearer credential used by the web interface.
type InterfaceToken struct {
	Token          string    `gorm:"primaryKey;size:64"`
	ExpirationTime time.Time `gorm:"not null;index"`
}

// TableName keeps the historical table name.
func (InterfaceToken) TableName() string { return "tokens" }
