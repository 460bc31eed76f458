// AngelaMos | 2026
// service.go

package contractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/angelamos/musicdesk/internal/audit"
	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/metrics"
	"github.com/angelamos/musicdesk/internal/storage"
)

const (
	ledgerContractor = "contractor"
	avatarLinkTTL    = 365 * 24 * time.Hour

	defaultTransactionLimit = 100
	maxTransactionLimit     = 500
)

type Service struct {
	db     *sqlx.DB
	repo   Repository
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db *sqlx.DB, store storage.Store, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		repo:   NewRepository(db),
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req CreateContractorRequest) (*Contractor, error) {
	c := &Contractor{
		ID:      uuid.New().String(),
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
		Status:  StatusActive,
		UserID:  req.UserID,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Contractor, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.signAvatar(ctx, c)
	return c, nil
}

func (s *Service) List(ctx context.Context, params ListParams) ([]Contractor, error) {
	out, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	for i := range out {
		s.signAvatar(ctx, &out[i])
	}

	if out == nil {
		out = []Contractor{}
	}
	return out, nil
}

func (s *Service) Update(
	ctx context.Context,
	id string,
	req UpdateContractorRequest,
) (*Contractor, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		c.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		c.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		c.Address = strings.TrimSpace(*req.Address)
	}
	if req.Status != nil {
		c.Status = *req.Status
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}

	s.signAvatar(ctx, c)
	return c, nil
}

// Delete removes the contractor. Its avatar object is removed after the
// row is gone and failures there are only logged.
// Delete removes a contractor with its tasks and ledger rows. The audit
// entry keeps the final balance once the ledger is gone.
func (s *Service) Delete(ctx context.Context, adminID, id string) error {
	ctx, span := core.StartSpan(ctx, "contractor.Delete")
	var err error
	defer func() { core.EndSpan(span, err) }()

	var c *Contractor
	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)

		var err error
		c, err = repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if err := repo.Delete(ctx, id); err != nil {
			return err
		}

		return audit.Record(ctx, tx, audit.Entry{
			ActorID:    adminID,
			Action:     audit.ActionContractorDeleted,
			EntityType: audit.EntityContractor,
			EntityID:   id,
			Details: map[string]any{
				"name":    c.Name,
				"balance": core.FormatAmount(c.Balance),
			},
		})
	})
	if err != nil {
		return err
	}

	if c.AvatarPath != nil {
		s.removeAvatar(ctx, *c.AvatarPath)
	}
	return nil
}

// UploadAvatar stores a new avatar and points the contractor at it. The
// previous object is removed once the row has moved on.
func (s *Service) UploadAvatar(
	ctx context.Context,
	id string,
	file *storage.File,
) (*Contractor, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("avatars/%s/%d%s", id, s.now().UnixMilli(), file.Extension)
	if err := s.store.Put(ctx, storage.BucketContractorDocuments, key,
		file.Reader(), file.Size(), file.ContentType); err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}

	if err := s.repo.SetAvatar(ctx, id, &key); err != nil {
		s.removeAvatar(ctx, key)
		return nil, err
	}

	if c.AvatarPath != nil && *c.AvatarPath != key {
		s.removeAvatar(ctx, *c.AvatarPath)
	}

	c.AvatarPath = &key
	s.signAvatar(ctx, c)
	return c, nil
}

// AdjustBalance adds to or removes from a contractor's balance by hand.
// The row always stores the absolute amount. Removing more than the
// balance is allowed.
func (s *Service) AdjustBalance(
	ctx context.Context,
	adminID, id string,
	req AdjustBalanceRequest,
) (*AdjustBalanceResponse, error) {
	if err := core.PositiveAmount(req.Amount); err != nil {
		return nil, fmt.Errorf("adjust contractor balance: %w", err)
	}

	var (
		txType string
		delta  decimal.Decimal
	)
	switch req.Action {
	case ActionAdd:
		txType, delta = TxManualAdd, req.Amount
	case ActionRemove:
		txType, delta = TxManualSubtract, req.Amount.Neg()
	default:
		return nil, fmt.Errorf("adjust contractor balance %q: %w", req.Action, ErrInvalidAction)
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = defaultAdjustDescription(req.Action)
	}

	ctx, span := core.StartSpan(ctx, "contractor.AdjustBalance")
	var err error
	defer func() { core.EndSpan(span, err) }()

	t := &Transaction{
		ID:           uuid.New().String(),
		ContractorID: id,
		Type:         txType,
		Amount:       req.Amount,
		Description:  description,
		CreatedBy:    &adminID,
	}

	var balance decimal.Decimal
	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)

		var err error
		balance, err = repo.AddBalance(ctx, id, delta)
		if err != nil {
			return err
		}

		if err := repo.CreateTransaction(ctx, t); err != nil {
			return err
		}

		return audit.Record(ctx, tx, audit.Entry{
			ActorID:    adminID,
			Action:     audit.ActionContractorBalanceAdjusted,
			EntityType: audit.EntityContractor,
			EntityID:   id,
			Details: map[string]any{
				"action":         req.Action,
				"amount":         core.FormatAmount(req.Amount),
				"balance":        core.FormatAmount(balance),
				"transaction_id": t.ID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordLedger(ledgerContractor, txType, delta)

	return &AdjustBalanceResponse{Transaction: t, Balance: balance}, nil
}

func defaultAdjustDescription(action string) string {
	if action == ActionRemove {
		return "Dedução manual de saldo"
	}
	return "Adição manual de saldo"
}

func (s *Service) ListTransactions(
	ctx context.Context,
	contractorID string,
	limit int,
) ([]Transaction, error) {
	if limit < 1 {
		limit = defaultTransactionLimit
	}
	if limit > maxTransactionLimit {
		limit = maxTransactionLimit
	}

	out, err := s.repo.ListTransactions(ctx, contractorID, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Transaction{}
	}
	return out, nil
}

func (s *Service) signAvatar(ctx context.Context, c *Contractor) {
	if c.AvatarPath == nil || *c.AvatarPath == "" {
		return
	}

	url, err := s.store.SignedURL(ctx, storage.BucketContractorDocuments, *c.AvatarPath, avatarLinkTTL)
	if err != nil {
		s.logger.Warn("avatar link not signed", "error", err, "contractor_id", c.ID)
		return
	}
	c.AvatarURL = url
}

func (s *Service) removeAvatar(ctx context.Context, key string) {
	err := s.store.Delete(context.WithoutCancel(ctx), storage.BucketContractorDocuments, key)
	if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Warn("avatar not removed", "error", err, "key", key)
	}
}
