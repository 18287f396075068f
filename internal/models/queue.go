package models

import "time"

// QueueEntry is a pending job waiting for a worker.
type QueueEntry struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"size:256;not null" json:"name"`
	Priority     int       `gorm:"default:0;index" json:"priority"`
	ReceivedFrom int64     `gorm:"not null;index" json:"received_from"`
	ReceivedTime time.Time `gorm:"not null" json:"received_time"`
	Tags         string    `gorm:"type:text" json:"tags"`
	JobData      string    `gorm:"type:text" json:"jobdata"`
}

// TableName keeps the historical table name.
func (QueueEntry) TableName() string { return "queue" }

// JobType makes a queue entry visible to one worker type.
type JobType struct {
	JobID  uint `gorm:"primaryKey;autoIncrement:false"`
	TypeID uint `gorm:"primaryKey;autoIncrement:false;index"`
}

// DoneEntry is the terminal record of a job, written by the worker that ran it.
type DoneEntry struct {
	JobID        uint      `gorm:"primaryKey;autoIncrement:false" json:"jobid"`
	Name         string    `gorm:"size:256" json:"name"`
	Priority     int       `json:"priority"`
	ReceivedFrom int64     `gorm:"not null;index" json:"received_from"`
	ReceivedTime time.Time `json:"received_time"`
	Tags         string    `gorm:"type:text" json:"tags"`
	JobData      string    `gorm:"type:text" json:"jobdata"`
	ServerID     uint      `json:"server_id"`
	ErrorCode    int       `json:"errorcode"`
	ResultData   string    `gorm:"type:text" json:"resultdata"`
	DoneTime     time.Time `json:"done_time"`
}

// TableName keeps the historical table name.
func (DoneEntry) TableName() string { return "done" }
