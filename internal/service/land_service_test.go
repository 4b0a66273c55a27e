package service

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/landledger/internal/domain"
)

func validLandInput() LandInput {
	return LandInput{
		Title: "Green Acres", Area: 1200.5, Address: "12 Hill Road", City: "Pune",
		State: "Maharashtra", Country: "India", Pincode: "411001",
	}
}

func TestRegisterLand(t *testing.T) {
	store := newTestStore(t)
	svc := NewLandService(store, nil, nil)
	svc.now = func() time.Time { return testNow }
	owner := seedUser(t, store, "u1", "Asha", "asha@x.io", domain.RoleUser)

	land, err := svc.RegisterLand(context.Background(), owner, validLandInput())
	require.NoError(t, err)
	assert.NotEmpty(t, land.ID)
	assert.Equal(t, domain.LandPending, land.Status)
	assert.Equal(t, 1, land.VerificationStep)
	assert.Nil(t, land.CertificateID)
	assert.Equal(t, "Asha", land.OwnerName)
	assert.Equal(t, "asha@x.io", land.OwnerEmail)
	assert.Equal(t, testNow, land.RegisteredAt)

	stored := loadLand(t, store, land.ID)
	assert.Equal(t, land.Title, stored.Title)
}

func TestRegisterLandValidation(t *testing.T) {
	store := newTestStore(t)
	svc := NewLandService(store, nil, nil)
	owner := seedUser(t, store, "u1", "Asha", "asha@x.io", domain.RoleUser)

	tests := []struct {
		name   string
		mutate func(*LandInput)
	}{
		{"blank title", func(in *LandInput) { in.Title = "  " }},
		{"missing pincode", func(in *LandInput) { in.Pincode = "" }},
		{"zero area", func(in *LandInput) { in.Area = 0 }},
		{"negative area", func(in *LandInput) { in.Area = -4 }},
		{"nan area", func(in *LandInput) { in.Area = Area(math.NaN()) }},
		{"infinite area", func(in *LandInput) { in.Area = Area(math.Inf(1)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validLandInput()
			tt.mutate(&in)
			_, err := svc.RegisterLand(context.Background(), owner, in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	lands, err := svc.ListMyLands(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, lands)
}

func TestAreaUnmarshal(t *testing.T) {
	for raw, want := range map[string]float64{`1200`: 1200, `"1200"`: 1200, `" 80.5 "`: 80.5, `-3`: -3} {
		var a Area
		require.NoError(t, json.Unmarshal([]byte(raw), &a), raw)
		assert.Equal(t, want, float64(a), raw)
	}

	var a Area
	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &a))
	assert.True(t, math.IsNaN(float64(a)))

	assert.Error(t, json.Unmarshal([]byte(`true`), &a))
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &a))
}

func TestListMyLandsAndGetLand(t *testing.T) {
	store := newTestStore(t)
	svc := NewLandService(store, nil, nil)
	ctx := context.Background()
	asha := seedUser(t, store, "u1", "Asha", "asha@x.io", domain.RoleUser)
	ravi := seedUser(t, store, "u2", "Ravi", "ravi@x.io", domain.RoleUser)
	admin := seedUser(t, store, "a1", "Admin", "admin@x.io", domain.RoleAdmin)

	seedLand(t, store, "l1", asha, false, testNow)
	seedLand(t, store, "l2", ravi, false, testNow)
	seedLand(t, store, "l3", asha, true, testNow.Add(time.Hour))

	mine, err := svc.ListMyLands(ctx, asha)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "l1", mine[0].ID)
	assert.Equal(t, "l3", mine[1].ID)

	none, err := svc.ListMyLands(ctx, admin)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	got, err := svc.GetLand(ctx, asha, "l1")
	require.NoError(t, err)
	assert.Equal(t, "l1", got.ID)

	_, err = svc.GetLand(ctx, asha, "l2")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err = svc.GetLand(ctx, admin, "l2")
	require.NoError(t, err)
	assert.Equal(t, "u2", got.OwnerID)

	_, err = svc.GetLand(ctx, asha, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
