package models

import "time"

// Server is one worker process. Workers keep CurrentJobID and LastPollTime
// up to date; a nil CurrentJobID means the worker is idle.
type Server struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"size:64;not null;uniqueIndex"`
	TypeID       uint   `gorm:"not null;index"`
	WakeupAddr   string `gorm:"size:128"`
	CurrentJobID *uint
	LastPollTime *time.Time
}
