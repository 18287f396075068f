package models

// Tag is a named capability a job can require.
type Tag struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"size:64;not null;uniqueIndex"`
}

// ServerType is a class of workers with a common set of capabilities.
type ServerType struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"size:64;not null;uniqueIndex"`
}

// TypeTag records that a server type honors a tag.
type TypeTag struct {
	TypeID uint `gorm:"primaryKey;autoIncrement:false"`
	TagID  uint `gorm:"primaryKey;autoIncrement:false;index"`
}
