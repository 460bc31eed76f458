// AngelaMos | 2026
// service.go

package wallet

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
	"github.com/angelamos/musicdesk/internal/config"
	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/metrics"
	"github.com/angelamos/musicdesk/internal/notification"
	"github.com/angelamos/musicdesk/internal/storage"
)

const (
	ledgerUser     = "user"
	receiptLinkTTL = time.Hour
)

type Notifier interface {
	Notify(ctx context.Context, n notification.Notice)
}

type Service struct {
	db             *sqlx.DB
	repo           Repository
	store          storage.Store
	notifier       Notifier
	creditOnSubmit bool
	logger         *slog.Logger
	now            func() time.Time
}

func NewService(
	db *sqlx.DB,
	store storage.Store,
	notifier Notifier,
	cfg config.WalletConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:             db,
		repo:           NewRepository(db),
		store:          store,
		notifier:       notifier,
		creditOnSubmit: cfg.CreditsOnSubmit(),
		logger:         logger,
		now:            time.Now,
	}
}

type DepositInput struct {
	Amount        decimal.Decimal
	PaymentMethod string
	Receipt       *storage.File
}

// SubmitDeposit stores the receipt and records an unverified deposit.
// Whether the balance moves now or on approval depends on the configured
// credit policy.
func (s *Service) SubmitDeposit(
	ctx context.Context,
	userID string,
	in DepositInput,
) (*Transaction, error) {
	if err := core.PositiveAmount(in.Amount); err != nil {
		return nil, fmt.Errorf("submit deposit: %w", err)
	}

	methodName, ok := PaymentMethodName(in.PaymentMethod)
	if !ok {
		return nil, fmt.Errorf("submit deposit %q: %w", in.PaymentMethod, ErrInvalidMethod)
	}

	if in.Receipt == nil {
		return nil, fmt.Errorf("submit deposit: %w", ErrMissingReceipt)
	}

	ctx, span := core.StartSpan(ctx, "wallet.SubmitDeposit")
	var err error
	defer func() { core.EndSpan(span, err) }()

	key := fmt.Sprintf("%s/%d_%s", userID, s.now().UnixMilli(), in.Receipt.Name)
	if err = s.store.Put(
		ctx,
		storage.BucketReceipts,
		key,
		in.Receipt.Reader(),
		in.Receipt.Size(),
		in.Receipt.ContentType,
	); err != nil {
		return nil, fmt.Errorf("upload receipt: %w", err)
	}

	method := in.PaymentMethod
	t := &Transaction{
		ID:                 uuid.New().String(),
		UserID:             userID,
		Type:               TypeDeposit,
		Amount:             in.Amount,
		Description:        fmt.Sprintf("Depósito via %s - Aguardando aprovação", methodName),
		PaymentMethod:      &method,
		DepositReceiptPath: &key,
	}

	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)

		if err := repo.Create(ctx, t); err != nil {
			return err
		}

		if s.creditOnSubmit {
			if _, err := repo.Credit(ctx, userID, in.Amount); err != nil {
				return err
			}
		}

		return audit.Record(ctx, tx, audit.Entry{
			ActorID:    userID,
			Action:     audit.ActionDepositSubmitted,
			EntityType: audit.EntityUserTransaction,
			EntityID:   t.ID,
			Details: map[string]any{
				"amount":         core.FormatAmount(in.Amount),
				"payment_method": in.PaymentMethod,
				"credited":       s.creditOnSubmit,
			},
		})
	})
	if err != nil {
		s.removeReceipt(ctx, key)
		return nil, err
	}

	if s.creditOnSubmit {
		metrics.RecordLedger(ledgerUser, TypeDeposit, in.Amount)
	}

	s.notifier.Notify(ctx, notification.Notice{
		UserID:      userID,
		Title:       "Depósito em Análise",
		Description: fmt.Sprintf("Seu depósito de %s está sendo analisado.", core.FormatMoney(in.Amount)),
		Type:        notification.TypeDeposit,
	})

	return t, nil
}

// ApproveDeposit confirms a pending deposit. The receipt is kept.
func (s *Service) ApproveDeposit(
	ctx context.Context,
	adminID, transactionID string,
) (*Transaction, error) {
	ctx, span := core.StartSpan(ctx, "wallet.ApproveDeposit")
	var err error
	defer func() { core.EndSpan(span, err) }()

	var deposit *Transaction
	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)

		t, err := lockUnverifiedDeposit(ctx, repo, transactionID)
		if err != nil {
			return err
		}

		if err := repo.MarkVerified(ctx, t.ID, adminID, false); err != nil {
			return err
		}

		if !s.creditOnSubmit {
			if _, err := repo.Credit(ctx, t.UserID, t.Amount); err != nil {
				return err
			}
		}

		if err := audit.Record(ctx, tx, audit.Entry{
			ActorID:    adminID,
			Action:     audit.ActionDepositApproved,
			EntityType: audit.EntityUserTransaction,
			EntityID:   t.ID,
			Details: map[string]any{
				"user_id": t.UserID,
				"amount":  core.FormatAmount(t.Amount),
			},
		}); err != nil {
			return err
		}

		now := s.now()
		t.VerifiedAt = &now
		t.VerifiedBy = &adminID
		deposit = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !s.creditOnSubmit {
		metrics.RecordLedger(ledgerUser, TypeDeposit, deposit.Amount)
	}

	s.notifier.Notify(ctx, notification.Notice{
		UserID:      deposit.UserID,
		Title:       "Depósito aprovado!",
		Description: fmt.Sprintf("Seu depósito de %s foi aprovado.", core.FormatMoney(deposit.Amount)),
		Type:        notification.TypeDeposit,
	})

	return deposit, nil
}

// RejectDeposit closes a pending deposit without crediting it. When the
// amount was already applied at submission it is reversed in the same
// transaction.
func (s *Service) RejectDeposit(
	ctx context.Context,
	adminID, transactionID string,
) (*Transaction, error) {
	ctx, span := core.StartSpan(ctx, "wallet.RejectDeposit")
	var err error
	defer func() { core.EndSpan(span, err) }()

	var (
		deposit    *Transaction
		receiptKey string
	)
	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)

		t, err := lockUnverifiedDeposit(ctx, repo, transactionID)
		if err != nil {
			return err
		}

		if t.DepositReceiptPath != nil {
			receiptKey = *t.DepositReceiptPath
		}

		if err := repo.MarkVerified(ctx, t.ID, adminID, true); err != nil {
			return err
		}

		if s.creditOnSubmit {
			if _, err := repo.Credit(ctx, t.UserID, t.Amount.Neg()); err != nil {
				return err
			}
			if err := repo.Create(ctx, &Transaction{
				ID:          uuid.New().String(),
				UserID:      t.UserID,
				Type:        TypeDepositReversal,
				Amount:      t.Amount.Neg(),
				Description: "Estorno de depósito rejeitado",
				AdminID:     &adminID,
			}); err != nil {
				return err
			}
		}

		if err := audit.Record(ctx, tx, audit.Entry{
			ActorID:    adminID,
			Action:     audit.ActionDepositRejected,
			EntityType: audit.EntityUserTransaction,
			EntityID:   t.ID,
			Details: map[string]any{
				"user_id":  t.UserID,
				"amount":   core.FormatAmount(t.Amount),
				"reversed": s.creditOnSubmit,
			},
		}); err != nil {
			return err
		}

		now := s.now()
		t.VerifiedAt = &now
		t.VerifiedBy = &adminID
		t.DepositReceiptPath = nil
		deposit = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.creditOnSubmit {
		metrics.RecordLedger(ledgerUser, TypeDepositReversal, deposit.Amount.Neg())
	}

	if receiptKey != "" {
		s.removeReceipt(ctx, receiptKey)
	}

	s.notifier.Notify(ctx, notification.Notice{
		UserID:      deposit.UserID,
		Title:       "Depósito rejeitado",
		Description: fmt.Sprintf("Seu depósito de %s foi rejeitado.", core.FormatMoney(deposit.Amount)),
		Type:        notification.TypeDeposit,
	})

	return deposit, nil
}

func lockUnverifiedDeposit(
	ctx context.Context,
	repo Repository,
	id string,
) (*Transaction, error) {
	t, err := repo.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}

	if t.Type != TypeDeposit {
		return nil, fmt.Errorf("deposit %s: %w", id, ErrNotDeposit)
	}

	if t.IsVerified() {
		return nil, fmt.Errorf("deposit %s: %w", id, ErrAlreadyVerified)
	}

	return t, nil
}

type AddBalanceResult struct {
	Transaction *Transaction    `json:"transaction"`
	Balance     decimal.Decimal `json:"balance"`
}

// AddBalance credits a user by hand. Each call is a separate credit.
func (s *Service) AddBalance(
	ctx context.Context,
	adminID, userID string,
	amount decimal.Decimal,
	description string,
) (*AddBalanceResult, error) {
	if err := core.PositiveAmount(amount); err != nil {
		return nil, fmt.Errorf("add balance: %w", err)
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = DefaultAdminAddDescription
	}

	ctx, span := core.StartSpan(ctx, "wallet.AddBalance")
	var err error
	defer func() { core.EndSpan(span, err) }()

	t := &Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        TypeAdminAdd,
		Amount:      amount,
		Description: description,
		AdminID:     &adminID,
	}

	var balance decimal.Decimal
	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)

		var err error
		balance, err = repo.Credit(ctx, userID, amount)
		if err != nil {
			return err
		}

		if err := repo.Create(ctx, t); err != nil {
			return err
		}

		return audit.Record(ctx, tx, audit.Entry{
			ActorID:    adminID,
			Action:     audit.ActionBalanceAdded,
			EntityType: audit.EntityProfile,
			EntityID:   userID,
			Details: map[string]any{
				"amount":         core.FormatAmount(amount),
				"description":    description,
				"transaction_id": t.ID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordLedger(ledgerUser, TypeAdminAdd, amount)

	s.notifier.Notify(ctx, notification.Notice{
		UserID:      userID,
		Title:       "Saldo Adicionado",
		Description: fmt.Sprintf("Foram adicionados %s à sua conta.", core.FormatMoney(amount)),
		Type:        notification.TypeBalance,
	})

	return &AddBalanceResult{Transaction: t, Balance: balance}, nil
}

func (s *Service) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return s.repo.Balance(ctx, userID)
}

func (s *Service) ListTransactions(
	ctx context.Context,
	userID string,
	params ListParams,
) ([]Transaction, int, error) {
	return s.repo.ListForUser(ctx, userID, params)
}

func (s *Service) ListPendingDeposits(
	ctx context.Context,
	params ListParams,
) ([]PendingDeposit, int, error) {
	return s.repo.ListPendingDeposits(ctx, params)
}

// ReceiptURL signs a short-lived link to a deposit receipt.
func (s *Service) ReceiptURL(ctx context.Context, transactionID string) (string, error) {
	t, err := s.repo.GetByID(ctx, transactionID)
	if err != nil {
		return "", err
	}

	if t.DepositReceiptPath == nil {
		return "", fmt.Errorf("receipt url: %w", core.ErrNotFound)
	}

	return s.store.SignedURL(ctx, storage.BucketReceipts, *t.DepositReceiptPath, receiptLinkTTL)
}

func (s *Service) removeReceipt(ctx context.Context, key string) {
	err := s.store.Delete(context.WithoutCancel(ctx), storage.BucketReceipts, key)
	if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Warn("receipt not removed", "error", err, "key", key)
	}
}
