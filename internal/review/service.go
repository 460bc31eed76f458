// AngelaMos | 2026
// service.go

package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelamos/musicdesk/internal/core"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	completedStatus  = "completed"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create records a rating for one of the caller's completed requests.
// A request may collect more than one review.
func (s *Service) Create(
	ctx context.Context,
	userID string,
	req CreateReviewRequest,
) (*Review, error) {
	ownerID, status, err := s.repo.RequestOwnerAndStatus(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}

	if ownerID != userID {
		return nil, fmt.Errorf("review request %s: %w", req.RequestID, core.ErrNotFound)
	}

	if status != completedStatus {
		return nil, fmt.Errorf("review request %s (%s): %w", req.RequestID, status, ErrRequestNotCompleted)
	}

	rv := &Review{
		ID:           uuid.New().String(),
		RequestID:    req.RequestID,
		ContractorID: req.ContractorID,
		UserID:       userID,
		Rating:       req.Rating,
		Comment:      strings.TrimSpace(req.Comment),
	}

	if err := s.repo.Create(ctx, rv); err != nil {
		return nil, err
	}

	return rv, nil
}

func (s *Service) List(ctx context.Context, params ListParams) ([]Listing, error) {
	if params.Limit < 1 {
		params.Limit = defaultListLimit
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}

	out, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Listing{}
	}
	return out, nil
}
