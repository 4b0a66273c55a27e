package service

import (
	"context"
	"log/slog"
	"slices"

	"github.com/aryan0dhankhar/landledger/internal/domain"
)

const recentLandsLimit = 5

// Dashboard aggregates what the signed-in user sees on their home view
type Dashboard struct {
	User          domain.User    `json:"user"`
	TotalLands    int            `json:"totalLands"`
	PendingLands  int            `json:"pendingLands"`
	VerifiedLands int            `json:"verifiedLands"`
	Transfers     int            `json:"transfers"`
	RecentLands   []*domain.Land `json:"recentLands"`
}

// DashboardService builds per-user summaries
type DashboardService struct {
	store  domain.Store
	logger *slog.Logger
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(store domain.Store, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{store: store, logger: logger}
}

// Dashboard counts the actor's lands by status and the transfers they took part in
func (s *DashboardService) Dashboard(ctx context.Context, actor *domain.User) (*Dashboard, error) {
	d := &Dashboard{User: actor.Public(), RecentLands: []*domain.Land{}}
	err := s.store.View(ctx, func(tx domain.Tx) error {
		lands, err := tx.ListLandsByOwner(actor.ID)
		if err != nil {
			return err
		}
		for _, l := range lands {
			if l.IsVerified() {
				d.VerifiedLands++
			} else {
				d.PendingLands++
			}
		}
		d.TotalLands = len(lands)

		slices.SortStableFunc(lands, func(a, b *domain.Land) int {
			return b.RegisteredAt.Compare(a.RegisteredAt)
		})
		d.RecentLands = append(d.RecentLands, lands[:min(len(lands), recentLandsLimit)]...)

		transfers, err := tx.ListTransfers()
		if err != nil {
			return err
		}
		for _, t := range transfers {
			if t.Involves(actor.ID) {
				d.Transfers++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}
