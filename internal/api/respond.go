package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"timekeeper/internal/apperr"
	"timekeeper/internal/domain"
)

// entryResponse is the wire shape of a time entry. The task_id field is
// synthesized for consumers of the legacy task-scoped model whenever the
// entry tracks a task; it is never stored.
type entryResponse struct {
	ID               string  `json:"id"`
	UserID           string  `json:"user_id"`
	TimelineItemID   string  `json:"timeline_item_id"`
	TimelineItemType string  `json:"timeline_item_type"`
	TaskID           *string `json:"task_id,omitempty"`
	StartAt          string  `json:"start_at"`
	EndAt            *string `json:"end_at,omitempty"`
	DurationMinutes  *int    `json:"duration_minutes,omitempty"`
	Note             *string `json:"note,omitempty"`
	Source           string  `json:"source"`
}

func toEntryResponse(e *domain.TimeEntry) entryResponse {
	resp := entryResponse{
		ID:               e.ID,
		UserID:           e.UserID,
		TimelineItemID:   e.TimelineItemID,
		TimelineItemType: e.TimelineItemType,
		StartAt:          e.StartAt.UTC().Format(time.RFC3339Nano),
		DurationMinutes:  e.DurationMinutes,
		Note:             e.Note,
		Source:           e.Source,
	}
	if e.EndAt != nil {
		s := e.EndAt.UTC().Format(time.RFC3339Nano)
		resp.EndAt = &s
	}
	if e.TimelineItemType == domain.ItemTypeTask {
		id := e.TimelineItemID
		resp.TaskID = &id
	}
	return resp
}

// windowEntryResponse adds the day-view display fields joined from the
// timeline item.
type windowEntryResponse struct {
	entryResponse
	ItemTitle     *string `json:"timeline_item_title,omitempty"`
	CategoryName  *string `json:"category_name,omitempty"`
	CategoryColor *string `json:"category_color,omitempty"`
}

func toWindowEntryResponse(e domain.EntryWithItem) windowEntryResponse {
	return windowEntryResponse{
		entryResponse: toEntryResponse(&e.TimeEntry),
		ItemTitle:     e.ItemTitle,
		CategoryName:  e.CategoryName,
		CategoryColor: e.CategoryColor,
	}
}

type itemResponse struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	Type          string  `json:"type"`
	Title         string  `json:"title"`
	CategoryName  *string `json:"category_name,omitempty"`
	CategoryColor *string `json:"category_color,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func toItemResponse(item *domain.TimelineItem) itemResponse {
	return itemResponse{
		ID:            item.ID,
		UserID:        item.UserID,
		Type:          item.Type,
		Title:         item.Title,
		CategoryName:  item.CategoryName,
		CategoryColor: item.CategoryColor,
		CreatedAt:     item.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// respondError maps an error to its HTTP status and a structured body.
// Internal failures are logged with their cause and answered with a generic
// message; no storage or transport error text reaches the client.
func respondError(c *gin.Context, log *slog.Logger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Wrap(apperr.CodeUnknown, "internal error", err)
	}
	status := ae.Code.HTTPStatus()
	if status >= 500 {
		log.Error("request failed",
			slog.String("code", string(ae.Code)),
			slog.String("error", err.Error()))
		c.JSON(status, gin.H{"error": "internal error", "code": apperr.CodeUnknown})
		return
	}
	body := gin.H{"error": ae.Message, "code": ae.Code}
	if len(ae.Metadata) > 0 {
		body["details"] = ae.Metadata
	}
	c.JSON(status, body)
}
