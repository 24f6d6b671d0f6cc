package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grainstats/basis-tracker/internal/model"
)

func nearby(names ...string) []model.NearbyFacility {
	out := make([]model.NearbyFacility, 0, len(names))
	for _, n := range names {
		out = append(out, model.NearbyFacility{Facility: model.Facility{Name: n}})
	}
	return out
}

func TestFoldName(t *testing.T) {
	assert.Equal(t, "hijar grain", foldName("Híjar Grain"))
	assert.Equal(t, "cargill", foldName("CARGILL"))
}

func TestFilterByName(t *testing.T) {
	facilities := nearby("Heartland Co-op", "Híjar Grain", "River Terminal")

	got := FilterByName(facilities, "heartland")
	assert.Len(t, got, 1)

	got = FilterByName(facilities, "hijar")
	assert.Len(t, got, 1)
	assert.Equal(t, "Híjar Grain", got[0].Name)

	got = FilterByName(facilities, "  ")
	assert.Len(t, got, 3, "blank query keeps everything")

	got = FilterByName(facilities, "nothing")
	assert.Empty(t, got)
}

func TestFilterByNameMatchesCompany(t *testing.T) {
	facilities := []model.NearbyFacility{
		{Facility: model.Facility{Name: "East Elevator", Company: "Cargill"}},
	}
	got := FilterByName(facilities, "cargill")
	assert.Len(t, got, 1)
}
