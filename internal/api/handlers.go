package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/LeventeLantos/listsync/internal/cache"
	"github.com/LeventeLantos/listsync/internal/filter"
	"github.com/LeventeLantos/listsync/internal/logger"
	"github.com/LeventeLantos/listsync/internal/model"
	"github.com/LeventeLantos/listsync/internal/scheduler"
)

// ListService is the list-facing part of service.Syncer.
type ListService interface {
	AddFilteredContacts(ctx context.Context, listID, tenantID int64, spec filter.Spec) (model.SyncResult, error)
	SyncListBySavedFilter(ctx context.Context, listID, tenantID int64) (model.SyncResult, error)
	SetSavedFilter(ctx context.Context, tenantID, listID int64, spec filter.Spec) error
	ClearSavedFilter(ctx context.Context, tenantID, listID int64) error
	ListItems(ctx context.Context, tenantID, listID int64, search string, page int) (model.ItemPage, error)
	LastResult(ctx context.Context, tenantID, listID int64) (*cache.LastSync, error)
}

type Handler struct {
	sched  *scheduler.Scheduler
	lists  ListService
	logger *zap.Logger
}

func NewHandler(s *scheduler.Scheduler, lists ListService, logger *zap.Logger) *Handler {
	return &Handler{sched: s, lists: lists, logger: logger}
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.schedulerState())
}

func (h *Handler) SchedulerStart(c echo.Context) error {
	h.sched.Start()
	return c.JSON(http.StatusOK, h.schedulerState())
}

func (h *Handler) SchedulerStop(c echo.Context) error {
	h.sched.Stop()
	return c.JSON(http.StatusOK, h.schedulerState())
}

// SchedulerRun kicks off a full saved-filter sync without waiting for it.
func (h *Handler) SchedulerRun(c echo.Context) error {
	ctx := context.WithoutCancel(c.Request().Context())
	if !h.sched.RunNow(ctx) {
		return c.JSON(http.StatusConflict, map[string]any{"error": "a sync run is already in progress"})
	}
	return c.JSON(http.StatusAccepted, map[string]any{"accepted": true})
}

func (h *Handler) schedulerState() map[string]any {
	state := map[string]any{"running": h.sched.IsRunning()}
	if next := h.sched.Next(); !next.IsZero() {
		state["nextRun"] = next.UTC().Format(time.RFC3339)
	}
	return state
}

func (h *Handler) AddFilteredContacts(c echo.Context) error {
	tenantID, listID, err := listParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	var spec filter.Spec
	if err := c.Bind(&spec); err != nil {
		return h.fail(c, model.NewValidationError(model.StageInput, "invalid filter body"))
	}

	res, err := h.lists.AddFilteredContacts(c.Request().Context(), listID, tenantID, spec)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) SyncList(c echo.Context) error {
	tenantID, listID, err := listParams(c)
	if err != nil {
		return h.fail(c, err)
	}

	res, err := h.lists.SyncListBySavedFilter(c.Request().Context(), listID, tenantID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) SetSavedFilter(c echo.Context) error {
	tenantID, listID, err := listParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	var spec filter.Spec
	if err := c.Bind(&spec); err != nil {
		return h.fail(c, model.NewValidationError(model.StageInput, "invalid filter body"))
	}

	if err := h.lists.SetSavedFilter(c.Request().Context(), tenantID, listID, spec); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"savedFilter": spec})
}

func (h *Handler) ClearSavedFilter(c echo.Context) error {
	tenantID, listID, err := listParams(c)
	if err != nil {
		return h.fail(c, err)
	}

	if err := h.lists.ClearSavedFilter(c.Request().Context(), tenantID, listID); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListItems(c echo.Context) error {
	tenantID, listID, err := listParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	page := parseInt(c.QueryParam("pageNumber"), 1)

	out, err := h.lists.ListItems(c.Request().Context(), tenantID, listID, c.QueryParam("searchParam"), page)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) LastSync(c echo.Context) error {
	tenantID, listID, err := listParams(c)
	if err != nil {
		return h.fail(c, err)
	}

	last, err := h.lists.LastResult(c.Request().Context(), tenantID, listID)
	if err != nil {
		return h.fail(c, err)
	}
	if last == nil {
		return h.fail(c, model.ErrNotFound)
	}
	return c.JSON(http.StatusOK, last)
}

// fail writes err with the status its kind maps to. Validation problems are
// the caller's fault; store and network failures are ours.
func (h *Handler) fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	body := map[string]any{"error": err.Error()}

	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body["stage"] = verr.Stage
	case errors.Is(err, model.ErrListBusy):
		status = http.StatusConflict
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	default:
		if stage := model.StageOf(err); stage != "" {
			body["stage"] = stage
		}
	}

	log := logger.FromEcho(c, h.logger)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	} else {
		log.Info("request rejected", zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
	}
	return c.JSON(status, body)
}

func listParams(c echo.Context) (tenantID, listID int64, err error) {
	tenantID, err = strconv.ParseInt(c.Param("tenantId"), 10, 64)
	if err != nil || tenantID <= 0 {
		return 0, 0, model.NewValidationError(model.StageInput, "invalid tenant id %q", c.Param("tenantId"))
	}
	listID, err = strconv.ParseInt(c.Param("listId"), 10, 64)
	if err != nil || listID <= 0 {
		return 0, 0, model.NewValidationError(model.StageInput, "invalid contact list id %q", c.Param("listId"))
	}
	return tenantID, listID, nil
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
