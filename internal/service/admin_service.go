package service

import (
    "context"

    "github.com/iliyamo/tour-experience-booking/internal/logger"
    "github.com/iliyamo/tour-experience-booking/internal/model"
    "github.com/iliyamo/tour-experience-booking/internal/repository"
)

type AdminService struct {
    users       *repository.UserRepo
    experiences *repository.ExperienceRepo
    stats       *repository.StatsRepo
}

func NewAdminService(users *repository.UserRepo, experiences *repository.ExperienceRepo, stats *repository.StatsRepo) *AdminService {
    return &AdminService{users: users, experiences: experiences, stats: stats}
}

func (s *AdminService) Statistics(ctx context.Context) (*model.Statistics, error) {
    return s.stats.Statistics(ctx)
}

func (s *AdminService) ListGuides(ctx context.Context, approved *bool) ([]model.User, error) {
    return s.users.ListGuides(ctx, approved)
}

// ApproveGuide lets a guide publish experiences.  Ids of non-guides are
// reported as not found.
func (s *AdminService) ApproveGuide(ctx context.Context, id uint64) (*model.User, error) {
    u, err := s.users.GetByID(ctx, id)
    if err != nil {
        return nil, err
    }
    if u.Role != model.RoleGuide {
        return nil, repository.ErrNotFound
    }
    if u.IsApproved {
        return u, nil
    }
    if err := s.users.Approve(ctx, id); err != nil {
        return nil, err
    }
    u.IsApproved = true
    logger.FromContext(ctx).Info().Uint64("guide_id", id).Msg("guide approved")
    return u, nil
}

// SetExperienceActive hides or re-publishes an experience.
func (s *AdminService) SetExperienceActive(ctx context.Context, id uint64, active bool) (*model.Experience, error) {
    e, err := s.experiences.GetByID(ctx, id)
    if err != nil {
        return nil, err
    }
    if e.IsActive != active {
        if err := s.experiences.SetActive(ctx, id, active); err != nil {
            return nil, err
        }
        e.IsActive = active
        logger.FromContext(ctx).Info().Uint64("experience_id", id).Bool("active", active).Msg("experience moderated")
    }
    return e, nil
}
