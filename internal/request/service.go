// AngelaMos | 2026
// service.go

package request

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
	"github.com/angelamos/musicdesk/internal/notification"
	"github.com/angelamos/musicdesk/internal/storage"
	"github.com/angelamos/musicdesk/internal/wallet"
)

const (
	ledgerUser        = "user"
	attachmentLinkTTL = time.Hour
)

type Notifier interface {
	Notify(ctx context.Context, n notification.Notice)
}

type Analyzer interface {
	AnalyzeAudio(ctx context.Context, audioURL, requestID string) (string, error)
}

type Service struct {
	db       *sqlx.DB
	repo     Repository
	store    storage.Store
	analyzer Analyzer
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(
	db *sqlx.DB,
	store storage.Store,
	analyzer Analyzer,
	notifier Notifier,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:       db,
		repo:     NewRepository(db),
		store:    store,
		analyzer: analyzer,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

type CreateInput struct {
	Name        string
	Email       string
	Phone       string
	ServiceType ServiceType
	Description string
}

// Create prices the request and charges the caller in the same
// transaction that inserts it. A shortfall leaves nothing behind.
func (s *Service) Create(
	ctx context.Context,
	userID string,
	in CreateInput,
) (*CreateResponse, error) {
	price, err := PriceFor(in.ServiceType)
	if err != nil {
		return nil, err
	}

	ctx, span := core.StartSpan(ctx, "request.Create")
	defer func() { core.EndSpan(span, err) }()

	req := &ServiceRequest{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        strings.TrimSpace(in.Name),
		Email:       strings.TrimSpace(in.Email),
		Phone:       strings.TrimSpace(in.Phone),
		ServiceType: in.ServiceType,
		Description: strings.TrimSpace(in.Description),
		Price:       price,
		Status:      StatusPending,
	}

	var balance decimal.Decimal
	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := NewRepository(tx).Create(ctx, req); err != nil {
			return err
		}

		var err error
		balance, err = wallet.Charge(ctx, tx, userID, req.ID, price, in.ServiceType.Label())
		if err != nil {
			return err
		}

		return audit.Record(ctx, tx, audit.Entry{
			ActorID:    userID,
			Action:     audit.ActionRequestCreated,
			EntityType: audit.EntityServiceRequest,
			EntityID:   req.ID,
			Details: map[string]any{
				"service_type": string(in.ServiceType),
				"price":        core.FormatAmount(price),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordLedger(ledgerUser, wallet.TypeServiceCharge, price.Neg())

	return &CreateResponse{Request: req, Balance: balance}, nil
}

// AddAttachments uploads files for a request the viewer can see and
// records one row per file. Objects are removed again if the rows
// cannot be written.
func (s *Service) AddAttachments(
	ctx context.Context,
	viewer Viewer,
	requestID string,
	files []*storage.File,
) ([]Attachment, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files: %w", core.ErrInvalidInput)
	}

	req, err := s.visible(ctx, viewer, requestID)
	if err != nil {
		return nil, err
	}

	ctx, span := core.StartSpan(ctx, "request.AddAttachments")
	defer func() { core.EndSpan(span, err) }()

	stamp := s.now().UnixMilli()
	attachments := make([]Attachment, 0, len(files))
	uploaded := make([]string, 0, len(files))

	for i, f := range files {
		key := fmt.Sprintf("%s/%d_%d_%s", req.ID, stamp, i, f.Name)
		if err = s.store.Put(ctx, storage.BucketAttachments, key,
			f.Reader(), f.Size(), f.ContentType); err != nil {
			s.removeObjects(ctx, uploaded)
			return nil, fmt.Errorf("upload attachment: %w", err)
		}
		uploaded = append(uploaded, key)

		attachments = append(attachments, Attachment{
			ID:          uuid.New().String(),
			RequestID:   req.ID,
			FileName:    f.Name,
			FilePath:    key,
			FileType:    f.Kind,
			ContentType: f.ContentType,
			FileSize:    f.Size(),
		})
	}

	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)
		for i := range attachments {
			if err := repo.CreateAttachment(ctx, &attachments[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.removeObjects(ctx, uploaded)
		return nil, err
	}

	return attachments, nil
}

func (s *Service) List(
	ctx context.Context,
	viewer Viewer,
	params ListParams,
) ([]ServiceRequest, int, error) {
	if !viewer.IsAdmin {
		params.UserID = viewer.UserID
	}
	return s.repo.List(ctx, params)
}

// Get returns a request with its attachments, each carrying a
// short-lived download link.
func (s *Service) Get(ctx context.Context, viewer Viewer, id string) (*DetailResponse, error) {
	req, err := s.visible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	attachments, err := s.repo.ListAttachments(ctx, id)
	if err != nil {
		return nil, err
	}

	for i := range attachments {
		url, err := s.store.SignedURL(ctx, storage.BucketAttachments,
			attachments[i].FilePath, attachmentLinkTTL)
		if err != nil {
			s.logger.Warn("attachment link not signed",
				"error", err, "request_id", id, "path", attachments[i].FilePath)
			continue
		}
		attachments[i].URL = url
	}

	if attachments == nil {
		attachments = []Attachment{}
	}

	return &DetailResponse{ServiceRequest: req, Attachments: attachments}, nil
}

// UpdateStatus moves a request along its lifecycle. Cancelling gives the
// charged price back in the same transaction.
func (s *Service) UpdateStatus(
	ctx context.Context,
	adminID, id, status string,
) (*ServiceRequest, error) {
	ctx, span := core.StartSpan(ctx, "request.UpdateStatus")
	var err error
	defer func() { core.EndSpan(span, err) }()

	var (
		req      *ServiceRequest
		refunded bool
	)
	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)

		current, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		from := current.Status
		if !CanTransition(from, status) {
			return fmt.Errorf("request %s %s -> %s: %w", id, from, status, ErrInvalidTransition)
		}

		if err := repo.UpdateStatus(ctx, id, from, status); err != nil {
			return err
		}

		if status == StatusCancelled && current.Price.IsPositive() {
			if _, err := wallet.Refund(ctx, tx, current.UserID, id, adminID, current.Price,
				"Reembolso: "+current.ServiceType.Label()); err != nil {
				return err
			}
			refunded = true
		}

		if err := audit.Record(ctx, tx, audit.Entry{
			ActorID:    adminID,
			Action:     audit.ActionRequestStatusChanged,
			EntityType: audit.EntityServiceRequest,
			EntityID:   id,
			Details: map[string]any{
				"from":     from,
				"to":       status,
				"refunded": refunded,
			},
		}); err != nil {
			return err
		}

		current.Status = status
		current.UpdatedAt = s.now()
		req = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if refunded {
		metrics.RecordLedger(ledgerUser, wallet.TypeRefund, req.Price)
	}

	description := fmt.Sprintf("Sua solicitação \"%s\" está agora: %s.", req.Name, StatusLabel(status))
	if refunded {
		description += fmt.Sprintf(" %s foram devolvidos ao seu saldo.", core.FormatMoney(req.Price))
	}

	s.notifier.Notify(ctx, notification.Notice{
		UserID:      req.UserID,
		Title:       "Solicitação atualizada",
		Description: description,
		Type:        notification.TypeRequest,
	})

	return req, nil
}

// Delete removes a pending or cancelled request. A pending request was
// charged and not yet refunded, so its price goes back to the owner.
func (s *Service) Delete(ctx context.Context, adminID, id string) error {
	ctx, span := core.StartSpan(ctx, "request.Delete")
	var err error
	defer func() { core.EndSpan(span, err) }()

	var (
		paths    []string
		refund   decimal.Decimal
		ownerID  string
		refunded bool
	)
	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)

		req, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if req.Status != StatusPending && req.Status != StatusCancelled {
			return fmt.Errorf("delete request %s (%s): %w", id, req.Status, ErrNotDeletable)
		}

		attachments, err := repo.ListAttachments(ctx, id)
		if err != nil {
			return err
		}
		for _, a := range attachments {
			paths = append(paths, a.FilePath)
		}

		if req.Status == StatusPending && req.Price.IsPositive() {
			if _, err := wallet.Refund(ctx, tx, req.UserID, id, adminID, req.Price,
				"Reembolso: "+req.ServiceType.Label()); err != nil {
				return err
			}
			refund, ownerID, refunded = req.Price, req.UserID, true
		}

		if err := repo.Delete(ctx, id); err != nil {
			return err
		}

		return audit.Record(ctx, tx, audit.Entry{
			ActorID:    adminID,
			Action:     audit.ActionRequestDeleted,
			EntityType: audit.EntityServiceRequest,
			EntityID:   id,
			Details: map[string]any{
				"name":     req.Name,
				"status":   req.Status,
				"user_id":  req.UserID,
				"refunded": refunded,
			},
		})
	})
	if err != nil {
		return err
	}

	if refunded {
		metrics.RecordLedger(ledgerUser, wallet.TypeRefund, refund)
		s.notifier.Notify(ctx, notification.Notice{
			UserID:      ownerID,
			Title:       "Solicitação removida",
			Description: fmt.Sprintf("%s foram devolvidos ao seu saldo.", core.FormatMoney(refund)),
			Type:        notification.TypeRequest,
		})
	}

	s.removeObjects(ctx, paths)
	return nil
}

// Analyze sends the first audio attachment of a completed request to
// the analysis gateway.
func (s *Service) Analyze(
	ctx context.Context,
	viewer Viewer,
	id string,
) (*AnalysisResponse, error) {
	req, err := s.visible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	if req.Status != StatusCompleted {
		return nil, fmt.Errorf("analyze request %s (%s): %w", id, req.Status, ErrNotCompleted)
	}

	audio, err := s.repo.FirstAudio(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.store.SignedURL(ctx, storage.BucketAttachments, audio.FilePath, attachmentLinkTTL)
	if err != nil {
		return nil, fmt.Errorf("sign audio link: %w", err)
	}

	text, err := s.analyzer.AnalyzeAudio(ctx, url, id)
	if err != nil {
		s.logger.Warn("audio analysis failed", "error", err, "request_id", id)
		return nil, err
	}

	return &AnalysisResponse{Success: true, Analysis: text, RequestID: id}, nil
}

func (s *Service) visible(ctx context.Context, viewer Viewer, id string) (*ServiceRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !viewer.CanSee(req) {
		return nil, fmt.Errorf("request %s: %w", id, core.ErrNotFound)
	}

	return req, nil
}

func (s *Service) removeObjects(ctx context.Context, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		err := s.store.Delete(ctx, storage.BucketAttachments, key)
		if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("attachment not removed", "error", err, "key", key)
		}
	}
}
