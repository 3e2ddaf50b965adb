// Package quota manages per-user PO credits and subscription plans.
package quota

import (
	"context"

	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/errors"
	"github.com/tradeflow-ai/tradeflow/internal/logging"
)

// CodeInvalidPlan is returned for an unknown plan id.
const CodeInvalidPlan errors.ErrorCode = "INVALID_PLAN"

// Service wraps quota persistence with plan rules.
type Service struct {
	repo   database.RepositoryInterface
	logger *logging.Logger
}

// NewService creates a quota service.
func NewService(repo database.RepositoryInterface, logger *logging.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Get returns the user's quota, creating the default one when absent.
func (s *Service) Get(ctx context.Context, userID string) (*database.UserQuota, error) {
	q, err := s.repo.GetOrCreateQuota(ctx, userID)
	if err != nil {
		return nil, errors.Internal("Internal server error", err)
	}
	return q, nil
}

// Subscribe moves the user to planID.
func (s *Service) Subscribe(ctx context.Context, userID, planID string) (*database.UserQuota, Plan, error) {
	plan, ok := LookupPlan(planID)
	if !ok {
		return nil, Plan{}, errors.BadRequest(CodeInvalidPlan, "Unknown plan")
	}
	if _, err := s.repo.GetOrCreateQuota(ctx, userID); err != nil {
		return nil, Plan{}, errors.Internal("Internal server error", err)
	}
	q, err := s.repo.SetQuotaPlan(ctx, userID, plan.ID, plan.Credits)
	if err != nil {
		return nil, Plan{}, errors.Internal("Internal server error", err)
	}
	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"plan":              plan.ID,
		"remaining_credits": q.RemainingCredits,
	}).Info("plan changed")
	return q, plan, nil
}

// ResetMonthly restores every user's remaining credits to the monthly allowance.
func (s *Service) ResetMonthly(ctx context.Context) error {
	n, err := s.repo.ResetMonthlyCredits(ctx)
	if err != nil {
		return err
	}
	s.logger.WithField("quotas", n).Info("monthly credits reset")
	return nil
}
