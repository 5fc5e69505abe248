package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"timekeeper/internal/apperr"
	"timekeeper/internal/domain"
	"timekeeper/internal/usecase"
)

type handlers struct {
	log    *slog.Logger
	timers *usecase.TimerService
	items  *usecase.ItemService
}

type startTimerRequest struct {
	AutoSwitch      bool       `json:"auto_switch"`
	OverrideStartAt *time.Time `json:"override_start_at"`
}

func (h *handlers) startTimer(c *gin.Context) {
	userID := UserID(c)
	itemID := c.Param("id")

	var req startTimerRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	entry, err := h.timers.Start(c.Request.Context(), userID, itemID, usecase.StartOptions{
		AutoSwitch:      req.AutoSwitch,
		OverrideStartAt: req.OverrideStartAt,
	})
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeTimerConflict {
			h.respondConflict(c, userID, err)
			return
		}
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": toEntryResponse(entry)})
}

// respondConflict attaches the currently running entry to a 409 so the
// client can offer "switch timer" instead of a blind retry. Re-reading here
// covers the lost-insert race, where the service never held the winning row.
func (h *handlers) respondConflict(c *gin.Context, userID string, err error) {
	body := gin.H{"error": "another timer is running", "code": apperr.CodeTimerConflict}
	if running, rerr := h.timers.Running(c.Request.Context(), userID); rerr == nil && running != nil {
		body["conflict"] = toEntryResponse(running)
	}
	c.JSON(http.StatusConflict, body)
}

type stopTimerRequest struct {
	OverrideEndAt *time.Time `json:"override_end_at"`
}

func (h *handlers) stopTimer(c *gin.Context) {
	userID := UserID(c)
	itemID := c.Param("id")

	var req stopTimerRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	entry, err := h.timers.Stop(c.Request.Context(), userID, itemID, usecase.StopOptions{
		OverrideEndAt: req.OverrideEndAt,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if entry == nil {
		// Nothing was running; stop is idempotent.
		c.JSON(http.StatusOK, gin.H{"entry": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": toEntryResponse(entry)})
}

func (h *handlers) runningTimer(c *gin.Context) {
	entry, err := h.timers.Running(c.Request.Context(), UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusOK, gin.H{"entry": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": toEntryResponse(entry)})
}

func (h *handlers) entriesInWindow(c *gin.Context) {
	from, ok := parseTimeParam(c, "from")
	if !ok {
		return
	}
	to, ok := parseTimeParam(c, "to")
	if !ok {
		return
	}

	entries, err := h.timers.EntriesInWindow(c.Request.Context(), UserID(c), from, to)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	out := make([]windowEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toWindowEntryResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

type updateEntryRequest struct {
	StartAt *time.Time `json:"start_at"`
	EndAt   *time.Time `json:"end_at"`
	Note    *string    `json:"note"`
}

func (h *handlers) updateEntry(c *gin.Context) {
	var req updateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	entry, err := h.timers.Edit(c.Request.Context(), UserID(c), c.Param("id"), domain.EntryPatch{
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
		Note:    req.Note,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": toEntryResponse(entry)})
}

func (h *handlers) deleteEntry(c *gin.Context) {
	if err := h.timers.Delete(c.Request.Context(), UserID(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type createItemRequest struct {
	Type          string  `json:"type" binding:"required"`
	Title         string  `json:"title" binding:"required"`
	CategoryName  *string `json:"category_name"`
	CategoryColor *string `json:"category_color"`
}

func (h *handlers) createItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	item, err := h.items.Create(c.Request.Context(), UserID(c), req.Type, req.Title,
		req.CategoryName, req.CategoryColor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": toItemResponse(item)})
}

func (h *handlers) getItem(c *gin.Context) {
	item, err := h.items.Get(c.Request.Context(), UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": toItemResponse(item)})
}

// bindOptionalJSON binds a JSON body into req, treating a missing body as
// the zero value. Returns false after writing a 400 on malformed input.
func bindOptionalJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	respondBindError(c, err)
	return false
}

// respondBindError answers malformed or invalid bodies with field detail
// where the validator provides it.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"code":    apperr.CodeValidation,
			"details": fields,
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "malformed request body",
		"code":  apperr.CodeValidation,
	})
}

func parseTimeParam(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": name + " query parameter is required",
			"code":  apperr.CodeValidation,
		})
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": name + " must be an RFC3339 timestamp",
			"code":  apperr.CodeValidation,
		})
		return time.Time{}, false
	}
	return t.UTC(), true
}
