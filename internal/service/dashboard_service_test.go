package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/landledger/internal/domain"
)

func TestDashboard(t *testing.T) {
	store := newTestStore(t)
	svc := NewDashboardService(store, nil)
	ctx := context.Background()
	asha := seedUser(t, store, "u1", "Asha", "asha@x.io", domain.RoleUser)
	ravi := seedUser(t, store, "u2", "Ravi", "ravi@x.io", domain.RoleUser)

	for i := range 7 {
		seedLand(t, store, fmt.Sprintf("l%d", i), asha, i%3 == 0, testNow.Add(time.Duration(i)*time.Hour))
	}
	seedLand(t, store, "other", ravi, false, testNow)
	require.NoError(t, store.Update(ctx, func(tx domain.Tx) error {
		return tx.CreateTransfer(&domain.Transfer{ID: "t1", FromUserID: ravi.ID, ToUserID: asha.ID})
	}))

	d, err := svc.Dashboard(ctx, asha)
	require.NoError(t, err)
	assert.Equal(t, "Asha", d.User.Name)
	assert.Equal(t, 7, d.TotalLands)
	assert.Equal(t, 3, d.VerifiedLands)
	assert.Equal(t, 4, d.PendingLands)
	assert.Equal(t, 1, d.Transfers)
	require.Len(t, d.RecentLands, 5)
	assert.Equal(t, "l6", d.RecentLands[0].ID)
	assert.Equal(t, "l2", d.RecentLands[4].ID)

	empty, err := svc.Dashboard(ctx, &domain.User{ID: "nobody"})
	require.NoError(t, err)
	assert.Zero(t, empty.TotalLands)
	assert.NotNil(t, empty.RecentLands)
}
