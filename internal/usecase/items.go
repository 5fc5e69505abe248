package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"timekeeper/internal/apperr"
	"timekeeper/internal/domain"
	"timekeeper/internal/ports"
)

// ItemService manages the timeline items that time entries reference.
type ItemService struct {
	Log   *slog.Logger
	Items ports.ItemStore
	Now   func() time.Time
}

func (s *ItemService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create registers a new timeline item owned by the user.
func (s *ItemService) Create(ctx context.Context, userID, itemType, title string, categoryName, categoryColor *string) (*domain.TimelineItem, error) {
	if !domain.ValidItemType(itemType) {
		return nil, apperr.New(apperr.CodeValidation, "unknown timeline item type")
	}
	if title == "" {
		return nil, apperr.New(apperr.CodeValidation, "title is required")
	}
	item := &domain.TimelineItem{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          itemType,
		Title:         title,
		CategoryName:  categoryName,
		CategoryColor: categoryColor,
		CreatedAt:     s.now(),
	}
	if err := s.Items.InsertItem(ctx, item); err != nil {
		return nil, err
	}
	s.Log.Info("timeline item created",
		slog.String("user_id", userID),
		slog.String("item_id", item.ID),
		slog.String("type", itemType))
	return item, nil
}

// Get returns the item scoped to its owner.
func (s *ItemService) Get(ctx context.Context, userID, itemID string) (*domain.TimelineItem, error) {
	return s.Items.ItemByID(ctx, userID, itemID)
}
