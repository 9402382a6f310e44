package services

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/soundloom/companion-bot/internal/deeplink"
	"github.com/soundloom/companion-bot/internal/platform/logger"
	"github.com/soundloom/companion-bot/internal/repos"
	"github.com/soundloom/companion-bot/internal/types"
)

// AnalyticsService persists one event per recognized deep link. Recording is
// fire-and-forget: a storage hiccup must never break the update being
// handled.
type AnalyticsService struct {
	log  *logger.Logger
	repo repos.DeepLinkEventRepo
}

func NewAnalyticsService(baseLog *logger.Logger, repo repos.DeepLinkEventRepo) *AnalyticsService {
	return &AnalyticsService{
		log:  baseLog.With("service", "AnalyticsService"),
		repo: repo,
	}
}

func (s *AnalyticsService) Record(ctx context.Context, userID int64, kind deeplink.Kind, value string, handled bool, payload map[string]any) {
	event := &types.DeepLinkEvent{
		UserID:  userID,
		Kind:    string(kind),
		Value:   value,
		Handled: handled,
	}
	if len(payload) > 0 {
		raw, err := json.Marshal(payload)
		if err != nil {
			s.log.Warn("Analytics payload marshal failed", "kind", string(kind), "error", err)
		} else {
			event.Payload = datatypes.JSON(raw)
		}
	}
	if _, err := s.repo.Create(ctx, nil, event); err != nil {
		s.log.Warn("Analytics event write failed", "kind", string(kind), "error", err)
	}
}
