package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Marker", &Marker{}, "markers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModels_ContainsMarker(t *testing.T) {
	found := false
	for _, m := range DatabaseModels {
		if _, ok := m.(*Marker); ok {
			found = true
		}
	}
	assert.True(t, found)
}
