package model

import (
	"time"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels lists every struct here that maps to a table.
var DatabaseModels = []interface{}{
	&Marker{},
}

// Marker is the persisted form of a store marker record.
//
// Latitude and Longitude are kept as plain columns so any SQL engine can
// answer listing queries. Location holds the same point projected to
// EPSG:3857 as WKB for engines with spatial tooling.
type Marker struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt   time.Time `json:"createdAt" gorm:"index:idx_marker_created_at"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Title       string    `json:"title" gorm:"size:256"`
	Description string    `json:"description"`
	Image       *string   `json:"image" gorm:"size:2048"` // nil when no picture was chosen
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Location    []byte    `json:"-"`
}

func (*Marker) TableName() string {
	return "markers"
}
