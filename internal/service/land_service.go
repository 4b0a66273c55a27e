package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/landledger/internal/domain"
	"github.com/aryan0dhankhar/landledger/internal/observability/metrics"
	"github.com/aryan0dhankhar/landledger/internal/security"
	"github.com/aryan0dhankhar/landledger/internal/security/audit"
)

// Area is a parcel area in square feet. Forms post it either as a JSON
// number or as the raw text of the input field.
type Area float64

func (a *Area) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*a = Area(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("area must be a number or numeric string: %w", err)
	}
	// unparseable text is left for validate to reject
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		n = math.NaN()
	}
	*a = Area(n)
	return nil
}

// LandInput is the parcel registration form
type LandInput struct {
	Title       string `json:"title"`
	Area        Area   `json:"area"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
	Pincode     string `json:"pincode"`
	Coordinates string `json:"coordinates"`
	Description string `json:"description"`
}

func (in LandInput) validate() error {
	for _, f := range []string{in.Title, in.Address, in.City, in.State, in.Country, in.Pincode} {
		if strings.TrimSpace(f) == "" {
			return domain.Validation("please fill in all required fields")
		}
	}
	area := float64(in.Area)
	if math.IsNaN(area) || math.IsInf(area, 0) || area <= 0 {
		return domain.Validation("area must be a positive number")
	}
	return nil
}

// LandService registers and reads parcels
type LandService struct {
	store  domain.Store
	authz  *security.AuthorizationServiceV2
	audit  *audit.Logger
	logger *slog.Logger
	now    func() time.Time
}

// NewLandService creates a new land registry service
func NewLandService(store domain.Store, authz *security.AuthorizationServiceV2, logger *slog.Logger) *LandService {
	if logger == nil {
		logger = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizationServiceV2(logger)
	}
	return &LandService{
		store:  store,
		authz:  authz,
		audit:  audit.NewLogger(logger),
		logger: logger,
		now:    time.Now,
	}
}

// RegisterLand records a new pending parcel owned by actor
func (s *LandService) RegisterLand(ctx context.Context, actor *domain.User, in LandInput) (*domain.Land, error) {
	if err := s.authz.ValidatePermission(actor.Role, security.PermRegisterLand); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		metrics.ObserveLandRegistration("invalid")
		return nil, err
	}

	now := s.now().UTC()
	land := &domain.Land{
		ID:               uuid.NewString(),
		Title:            strings.TrimSpace(in.Title),
		Area:             float64(in.Area),
		Address:          strings.TrimSpace(in.Address),
		City:             strings.TrimSpace(in.City),
		State:            strings.TrimSpace(in.State),
		Country:          strings.TrimSpace(in.Country),
		Pincode:          strings.TrimSpace(in.Pincode),
		Coordinates:      strings.TrimSpace(in.Coordinates),
		Description:      strings.TrimSpace(in.Description),
		OwnerID:          actor.ID,
		OwnerName:        actor.Name,
		OwnerEmail:       actor.Email,
		Status:           domain.LandPending,
		VerificationStep: domain.FirstVerificationStep,
		Documents:        []string{},
		RegisteredAt:     now,
		UpdatedAt:        now,
	}

	err := s.store.Update(ctx, func(tx domain.Tx) error {
		owner, err := tx.GetUser(actor.ID)
		if err != nil {
			return err
		}
		land.OwnerName = owner.Name
		land.OwnerEmail = owner.Email
		return tx.CreateLand(land)
	})
	if err != nil {
		metrics.ObserveLandRegistration("error")
		return nil, domain.FromStore(err, "user")
	}

	metrics.ObserveLandRegistration("success")
	s.audit.LogRegistration(ctx, actor.ID, land.ID, "success", land.Title)
	s.logger.Info("land registered",
		slog.String("land_id", land.ID),
		slog.String("owner_id", actor.ID),
	)
	return land, nil
}

// ListMyLands returns the actor's parcels in registration order
func (s *LandService) ListMyLands(ctx context.Context, actor *domain.User) ([]*domain.Land, error) {
	var lands []*domain.Land
	err := s.store.View(ctx, func(tx domain.Tx) error {
		l, err := tx.ListLandsByOwner(actor.ID)
		lands = l
		return err
	})
	if err != nil {
		return nil, err
	}
	if lands == nil {
		lands = []*domain.Land{}
	}
	return lands, nil
}

// GetLand returns a parcel visible to actor
func (s *LandService) GetLand(ctx context.Context, actor *domain.User, id string) (*domain.Land, error) {
	var land *domain.Land
	err := s.store.View(ctx, func(tx domain.Tx) error {
		l, err := tx.GetLand(id)
		land = l
		return err
	})
	if err != nil {
		return nil, domain.FromStore(err, "land")
	}

	err = s.authz.ValidateResourceAccess(actor, security.ResourcePermission{
		ResourceType: security.ResourceLand,
		ResourceID:   land.ID,
		OwnerID:      land.OwnerID,
		Permission:   security.PermReadAnyLand,
	})
	if err != nil {
		return nil, err
	}
	return land, nil
}
