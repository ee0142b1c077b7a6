package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLayout = `
stations:
  M1:
    capacity: 1
    x: 10
    row: 0
  D1:
    capacity: 2
operations:
  op1:
    - [S, 5, 5]
    - [M1, 10, 10]
Travel_Times:
  S:
    M1: 2
  M1:
    FIN: 3
`

func TestLoadLayout_ParsesStationsOperationsAndTravel(t *testing.T) {
	layout, err := LoadLayout([]byte(sampleLayout))
	require.NoError(t, err)

	stations := layout.Stations()
	assert.Equal(t, 1, stations["M1"].Capacity)
	assert.Equal(t, 10, stations["M1"].X)
	// Reserved stations are injected automatically.
	assert.Contains(t, stations, StationSource)
	assert.Contains(t, stations, StationFinish)

	recipe, ok := layout.Operation("op1")
	require.True(t, ok)
	require.Len(t, recipe, 2)
	assert.Equal(t, StationSource, recipe[0].Station)
	assert.Equal(t, "M1", recipe[1].Station)

	assert.Equal(t, 2.0, layout.TravelTime(StationSource, "M1"))
	assert.Equal(t, 1.0, layout.TravelTime("M1", StationSource), "unlisted pair defaults to 1.0")
}

func TestLoadLayout_RejectsOperationNotStartingAtSource(t *testing.T) {
	doc := `
stations:
  M1:
    capacity: 1
operations:
  bad:
    - [M1, 5, 5]
`
	_, err := LoadLayout([]byte(doc))
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadLayout_RejectsUnknownStationReference(t *testing.T) {
	doc := `
stations:
  M1:
    capacity: 1
operations:
  op1:
    - [S, 0, 0]
    - [GHOST, 5, 5]
`
	_, err := LoadLayout([]byte(doc))
	require.Error(t, err)
}

func TestLoadLayout_RejectsMaxLessThanMin(t *testing.T) {
	doc := `
stations:
  M1:
    capacity: 1
operations:
  op1:
    - [S, 0, 0]
    - [M1, 10, 5]
`
	_, err := LoadLayout([]byte(doc))
	require.Error(t, err)
}

func TestLoadLayout_RejectsNegativeTravelTime(t *testing.T) {
	doc := `
stations:
  M1:
    capacity: 1
Travel_Times:
  M1:
    FIN: -1
`
	_, err := LoadLayout([]byte(doc))
	require.Error(t, err)
}
