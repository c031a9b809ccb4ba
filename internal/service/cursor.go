package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"stockroom/internal/config"
	"stockroom/internal/models"
	"stockroom/internal/repository"
)

// CursorLedger is the only place pagination state crosses a run boundary.
// Runs append cursor rows and never rewrite them; resume reads the most recent
// successful row. Callers must not cache resume points across runs.
type CursorLedger struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

type ResumePoint struct {
	PageSize    int
	CurrentPage int
	Watermark   *time.Time
}

type RunOutcome struct {
	Result     string
	Imported   int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// LoadResumePoint returns the stream defaults when no successful run has been
// recorded yet, otherwise the last successful cursor's values.
func (l *CursorLedger) LoadResumePoint(ctx context.Context, actionKind, entityKind string, defaults config.StreamConfig) (ResumePoint, error) {
	point := ResumePoint{
		PageSize:    defaults.PageSize,
		CurrentPage: defaults.StartPage,
	}
	if point.PageSize <= 0 {
		point.PageSize = 50
	}
	if point.CurrentPage <= 0 {
		point.CurrentPage = 1
	}

	cursor, err := l.Repo.LatestSuccessfulCursor(ctx, actionKind, entityKind)
	if err != nil {
		return ResumePoint{}, err
	}
	if cursor == nil {
		return point, nil
	}
	if cursor.PageSize > 0 {
		point.PageSize = cursor.PageSize
	}
	if cursor.CurrentPage > 0 {
		point.CurrentPage = cursor.CurrentPage
	}
	point.Watermark = cursor.Watermark
	return point, nil
}

// CommitRun appends a cursor row and folds the outcome into the per-entity
// history: the failure streak increments on failure and resets on success.
// Partial runs made progress, so they reset the streak too.
func (l *CursorLedger) CommitRun(ctx context.Context, actionKind, entityKind string, state CursorState, watermark *time.Time, outcome RunOutcome) error {
	history, err := l.Repo.GetSyncHistory(ctx, entityKind)
	if err != nil {
		return err
	}

	times := 0
	if outcome.Result == models.ResultFailure {
		if history != nil {
			times = history.Times
		}
		times++
	}

	stats, _ := json.Marshal(map[string]int{
		"imported": outcome.Imported,
		"failed":   outcome.Failed,
	})

	return l.Repo.InTx(ctx, func(tx *gorm.DB) error {
		cursor := &models.SyncCursor{
			ActionKind:  actionKind,
			EntityKind:  entityKind,
			PageSize:    state.PageSize,
			CurrentPage: state.CurrentPage,
			Watermark:   watermark,
			TotalCount:  state.TotalCount,
			Result:      outcome.Result,
			StartedAt:   outcome.StartedAt,
			FinishedAt:  outcome.FinishedAt,
			StatsJSON:   datatypes.JSON(stats),
		}
		if err := l.Repo.InsertSyncCursorTx(ctx, tx, cursor); err != nil {
			return err
		}
		return l.Repo.UpsertSyncHistoryTx(ctx, tx, &models.SyncHistory{
			EntityKind:    entityKind,
			Times:         times,
			LastStatus:    outcome.Result,
			ImportedCount: outcome.Imported,
			FailedCount:   outcome.Failed,
			DurationMs:    outcome.FinishedAt.Sub(outcome.StartedAt).Milliseconds(),
			RanAt:         outcome.FinishedAt,
		})
	})
}
