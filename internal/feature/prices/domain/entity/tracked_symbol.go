package entity

import "time"

// TrackedSymbol is a security or currency the engine has been asked to keep prices for.
// LastUpdate is nil until the first successful historical-sync write.
type TrackedSymbol struct {
	ID            uint       `gorm:"primaryKey"`
	Symbol        string     `gorm:"size:32;not null;uniqueIndex"`
	Market        Market     `gorm:"size:32;not null"`
	AddedAt       time.Time  `gorm:"not null"`
	LastQueriedAt time.Time  `gorm:"not null;index"`
	LastUpdate    *time.Time `gorm:"index"`
}

// TableName pins the table name used by gorm.
func (TrackedSymbol) TableName() string {
	return "tracked_symbols"
}

// TrackStatus is the per-symbol outcome of a track request.
type TrackStatus string

const (
	TrackStatusAdded          TrackStatus = "added"
	TrackStatusAlreadyTracked TrackStatus = "already_tracked"
	TrackStatusUnsupported    TrackStatus = "unsupported_symbol_type"
)
