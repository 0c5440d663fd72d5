package reporting

import (
	"context"
	"errors"
	"time"

	"voice-relay/internal/apperr"
	"voice-relay/internal/calls"
)

var ErrInvalidRequest = apperr.New(apperr.KindValidation, "Invalid time range")

// Repository is the read side reporting needs. calls.Repository satisfies it.
type Repository interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]calls.Call, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListBetween(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{Range: req.Range, ByProvider: map[string]int{}}
	for _, c := range rows {
		out.TotalCalls++
		out.ByProvider[string(c.Provider)]++
		switch c.Status {
		case calls.StatusPending:
			out.PendingCalls++
		case calls.StatusInProgress:
			out.InProgressCalls++
		case calls.StatusCompleted:
			out.CompletedCalls++
		case calls.StatusFailed:
			out.FailedCalls++
		default:
			out.UnknownCalls++
		}
	}
	if finished := out.CompletedCalls + out.FailedCalls; finished > 0 {
		out.SuccessRate = float64(out.CompletedCalls) / float64(finished)
	}
	return out, nil
}
