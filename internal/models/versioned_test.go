package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeEtagDeterministic(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)

	a := ComputeEtag(42, at)
	b := ComputeEtag(42, at)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestComputeEtagSensitivity(t *testing.T) {
	at := time.Now()

	assert.NotEqual(t, ComputeEtag(1, at), ComputeEtag(2, at))
	assert.NotEqual(t, ComputeEtag(1, at), ComputeEtag(1, at.Add(time.Nanosecond)))
}

func TestComputeEtagTimezoneInsensitive(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	utc := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, ComputeEtag(7, utc), ComputeEtag(7, utc.In(loc)))
}

func TestTouchAdvancesRevision(t *testing.T) {
	v := &Versioned{Version: 1}
	v.Init(5, time.Now())
	firstEtag := v.Etag

	v.Touch(5, time.Now().Add(time.Second))
	assert.Equal(t, 2, v.Version)
	assert.NotEqual(t, firstEtag, v.Etag)
}

func TestIsDeleted(t *testing.T) {
	v := &Versioned{}
	assert.False(t, v.IsDeleted())

	now := time.Now()
	v.DeletedAt = &now
	assert.True(t, v.IsDeleted())
}
