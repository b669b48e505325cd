package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/board-cache/app/cfg"
	"github.com/lysyi3m/board-cache/app/display"
	"github.com/lysyi3m/board-cache/app/tasks"
)

func NewHandler(boardID string, stats StatsReader, usage UsageReader, selector SnapshotReader,
	syncer SyncStatusReader, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		boardID:   boardID,
		stats:     stats,
		usage:     usage,
		selector:  selector,
		syncer:    syncer,
		scheduler: scheduler,
		startedAt: time.Now(),
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"board_id":  h.boardID,
		"version":   cfg.GetVersion(),
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
	}

	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "stats", "error", err)
		health["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	health["items"] = stats.Items

	if result, ok := h.syncer.LastResult(); ok {
		health["last_sync_at"] = result.At.In(time.Local).Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := gin.H{
		"board_id": h.boardID,
		"content":  stats,
	}

	if usage, err := h.usage.Usage(); err == nil {
		response["storage"] = gin.H{
			"bytes":       usage.Bytes,
			"files":       usage.Files,
			"quota_bytes": usage.QuotaBytes,
			"exceeded":    usage.Exceeded(),
			"summary":     usage.String(),
		}
	} else {
		slog.Warn("Failed to measure storage usage", "error", err)
	}

	if result, ok := h.syncer.LastResult(); ok {
		response["last_sync"] = gin.H{
			"at":          result.At,
			"duration":    result.Duration.String(),
			"fetched":     result.Fetched,
			"written":     result.Written,
			"skipped":     result.Skipped,
			"invalid":     result.Invalid,
			"attachments": result.Attachments,
			"downloaded":  result.Downloaded,
		}
	}

	if report := h.usage.LastReport(); !report.At.IsZero() {
		response["last_cleanup"] = report
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetActiveContent(c *gin.Context) {
	snapshot := h.selector.Snapshot()

	response := activeResponse{
		State:        snapshot.State,
		Index:        snapshot.Index,
		Items:        make([]activeItem, 0, len(snapshot.Items)),
		LastChangeAt: snapshot.LastChangeAt,
		RefreshedAt:  snapshot.RefreshedAt,
	}

	for _, item := range snapshot.Items {
		response.Items = append(response.Items, activeItem{
			ID:              item.ID,
			Title:           item.Title,
			ContentType:     string(item.ContentType),
			Priority:        item.Priority,
			ScheduleType:    string(item.ScheduleType),
			ScheduleEnd:     item.ScheduleEnd,
			DisplayDuration: item.DisplayDuration().String(),
			Recurring:       item.IsRecurring(),
			LastAccessedAt:  item.LastAccessedAt,
		})
	}

	if snapshot.State == display.StateCycling && snapshot.Index < len(response.Items) {
		current := response.Items[snapshot.Index]
		response.Current = &current
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) PostSync(c *gin.Context) {
	if err := h.scheduler.RequestSync("api"); err != nil {
		slog.Error("Error enqueueing sync task", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Sync task enqueued",
	})
}
