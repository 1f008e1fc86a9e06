package convert

import (
	"strconv"

	"github.com/storepins/pinboard/internal/model"
	"github.com/storepins/pinboard/pkg/core"
)

// MarkerToRecord converts a GORM Marker to a core.MarkerRecord
func MarkerToRecord(m model.Marker) core.MarkerRecord {
	var img core.ResourceLocator
	if m.Image != nil {
		img = core.ResourceLocator(*m.Image)
	}
	return core.MarkerRecord{
		Title:       m.Title,
		Description: m.Description,
		Image:       img,
		Latitude:    m.Latitude,
		Longitude:   m.Longitude,
		CreatedAt:   m.CreatedAt,
	}
}

// MarkerToDocument converts a GORM Marker to a core.Document keyed by its primary key
func MarkerToDocument(m model.Marker) core.Document {
	return core.Document{
		ID:     strconv.FormatUint(uint64(m.ID), 10),
		Record: MarkerToRecord(m),
	}
}
