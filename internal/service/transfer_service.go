package service

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aryan0dhankhar/landledger/internal/domain"
	"github.com/aryan0dhankhar/landledger/internal/observability/metrics"
	"github.com/aryan0dhankhar/landledger/internal/observability/tracing"
	"github.com/aryan0dhankhar/landledger/internal/security"
	"github.com/aryan0dhankhar/landledger/internal/security/audit"
)

// TransferInput is the transfer form. LandVersion, when set, must match the
// version the caller last saw.
type TransferInput struct {
	LandID         string  `json:"landId"`
	RecipientEmail string  `json:"recipientEmail"`
	Amount         float64 `json:"amount"`
	Notes          string  `json:"notes"`
	LandVersion    int64   `json:"landVersion,omitempty"`
}

// TransferResult is the recorded transfer and the land after reassignment
type TransferResult struct {
	Transfer *domain.Transfer `json:"transfer"`
	Land     *domain.Land     `json:"land"`
}

// TransferService moves verified parcels between accounts
type TransferService struct {
	store  domain.Store
	authz  *security.AuthorizationService
	audit  *audit.Logger
	logger *slog.Logger
	now    func() time.Time
}

// NewTransferService creates a new transfer engine
func NewTransferService(store domain.Store, authz *security.AuthorizationService, logger *slog.Logger) *TransferService {
	if logger == nil {
		logger = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizationService(logger)
	}
	return &TransferService{
		store:  store,
		authz:  authz,
		audit:  audit.NewLogger(logger),
		logger: logger,
		now:    time.Now,
	}
}

// Initiate reassigns a verified land to the recipient and appends the transfer
// record in one unit of work. Any failure leaves both untouched.
func (s *TransferService) Initiate(ctx context.Context, actor *domain.User, in TransferInput) (*TransferResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "transfer.initiate")
	defer span.End()
	span.SetAttributes(attribute.String("land.id", in.LandID), attribute.String("user.id", actor.ID))

	result, err := s.initiate(ctx, actor, in)
	if err != nil {
		kind := "error"
		if k := domain.KindOf(err); k != nil {
			kind = strings.ReplaceAll(k.Error(), " ", "_")
		}
		metrics.ObserveTransfer(kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.audit.LogTransfer(ctx, actor.ID, in.LandID, "failed", err.Error())
		return nil, err
	}

	metrics.ObserveTransfer("success")
	s.audit.LogTransfer(ctx, actor.ID, in.LandID, "success", "to "+result.Transfer.ToUserID)
	s.logger.Info("land transferred",
		slog.String("land_id", result.Land.ID),
		slog.String("from_user_id", result.Transfer.FromUserID),
		slog.String("to_user_id", result.Transfer.ToUserID),
	)
	return result, nil
}

func (s *TransferService) initiate(ctx context.Context, actor *domain.User, in TransferInput) (*TransferResult, error) {
	if err := s.authz.ValidatePermission(actor.Role, security.PermTransferLand); err != nil {
		return nil, err
	}
	recipientEmail := domain.NormalizeEmail(in.RecipientEmail)

	var result TransferResult
	err := s.store.Update(ctx, func(tx domain.Tx) error {
		land, err := tx.GetLand(in.LandID)
		if err != nil {
			return domain.FromStore(err, "land")
		}
		sender, err := tx.GetUser(actor.ID)
		if err != nil {
			return domain.FromStore(err, "user")
		}
		if recipientEmail == sender.Email {
			return domain.Validation("cannot transfer land to yourself")
		}
		if !land.IsVerified() {
			return domain.Precondition("only verified land can be transferred")
		}
		if land.OwnerID != sender.ID {
			return domain.Precondition("you can only transfer land you own")
		}
		if in.LandVersion != 0 && in.LandVersion != land.Version {
			return domain.Conflict("land was modified since it was loaded, reload and retry")
		}
		recipient, err := tx.GetUserByEmail(recipientEmail)
		if err != nil {
			return domain.FromStore(err, "recipient user")
		}
		if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) || in.Amount < 0 {
			return domain.Validation("amount must be a non-negative number")
		}

		now := s.now().UTC()
		transfer := &domain.Transfer{
			ID:            uuid.NewString(),
			LandID:        land.ID,
			LandTitle:     land.Title,
			FromUserID:    sender.ID,
			FromUserName:  sender.Name,
			FromUserEmail: sender.Email,
			ToUserID:      recipient.ID,
			ToUserName:    recipient.Name,
			ToUserEmail:   recipient.Email,
			Amount:        in.Amount,
			Currency:      domain.TransferCurrency,
			Notes:         strings.TrimSpace(in.Notes),
			TransferredAt: now,
		}
		if err := tx.CreateTransfer(transfer); err != nil {
			return err
		}

		land.OwnerID = recipient.ID
		land.OwnerName = recipient.Name
		land.OwnerEmail = recipient.Email
		land.UpdatedAt = now
		if err := tx.UpdateLand(land); err != nil {
			return err
		}

		result = TransferResult{Transfer: transfer, Land: land}
		return nil
	})
	if err != nil {
		return nil, domain.FromStore(err, "land")
	}
	return &result, nil
}

// History lists transfers visible to actor, newest first. Admins see every transfer.
func (s *TransferService) History(ctx context.Context, actor *domain.User) ([]*domain.Transfer, error) {
	all := s.authz.HasPermission(actor.Role, security.PermListAllTransfers)

	var transfers []*domain.Transfer
	err := s.store.View(ctx, func(tx domain.Tx) error {
		list, err := tx.ListTransfers()
		if err != nil {
			return err
		}
		for _, t := range list {
			if all || t.Involves(actor.ID) {
				transfers = append(transfers, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if transfers == nil {
		transfers = []*domain.Transfer{}
	}
	slices.Reverse(transfers)
	return transfers, nil
}
