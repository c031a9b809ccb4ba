package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"stockroom/internal/client/platform"
	"stockroom/internal/config"
	"stockroom/internal/models"
	"stockroom/internal/repository"
)

// IngestService drives one ingestion stream per entity kind: resume from the
// ledger, walk the pages, reconcile what was fetched, commit the new cursor.
type IngestService struct {
	Repo               repository.Repository
	Platform           *platform.Client
	Ledger             *CursorLedger
	Reconciler         *Reconciler
	States             *OrderStateService
	Cfg                config.SyncConfig
	DefaultWarehouseID uint64
	Logger             *zap.Logger
}

type RunReport struct {
	EntityKind string      `json:"entity_kind"`
	Result     string      `json:"result"`
	Imported   int         `json:"imported"`
	Failed     int         `json:"failed"`
	Pages      int         `json:"pages"`
	Cursor     CursorState `json:"cursor"`
}

func resourceFor(entityKind string) (string, error) {
	switch entityKind {
	case models.EntityArticle:
		return platform.ResourceProducts, nil
	case models.EntityCategory:
		return platform.ResourceCategories, nil
	case models.EntityAttribute:
		return platform.ResourceAttributes, nil
	case models.EntityOrder:
		return platform.ResourceOrders, nil
	default:
		return "", fmt.Errorf("unsupported entity kind: %s", entityKind)
	}
}

// RunIngestion executes one full run of a stream. A run that fetched nothing
// fails outright; a run that skipped pages or rejected items commits as
// partial; everything else commits as success. The cursor is committed in all
// three cases so the next run resumes from real progress.
func (s *IngestService) RunIngestion(ctx context.Context, entityKind string) (RunReport, error) {
	resource, err := resourceFor(entityKind)
	if err != nil {
		return RunReport{}, err
	}
	stream := s.Cfg.StreamFor(entityKind)
	started := time.Now().UTC()

	resume, err := s.Ledger.LoadResumePoint(ctx, models.ActionImport, entityKind, stream)
	if err != nil {
		return RunReport{}, err
	}

	var filters []platform.Filter
	if stream.UseWatermark && resume.Watermark != nil {
		filters = append(filters, platform.Filter{
			Field:         "updated_at",
			Value:         resume.Watermark.Format("2006-01-02 15:04:05"),
			ConditionType: "gteq",
		})
	}

	fetch := func(ctx context.Context, pageSize, page int) (FetchedPage, error) {
		result, err := s.Platform.FetchPage(ctx, resource, pageSize, page, filters)
		if err != nil {
			return FetchedPage{}, err
		}
		return FetchedPage{Items: result.Items, TotalCount: result.TotalCount}, nil
	}

	start := CursorState{PageSize: resume.PageSize, CurrentPage: resume.CurrentPage}
	retry := RetryPolicy{MaxAttempts: stream.MaxAttempts, Backoff: stream.RetryBackoff}
	loop, loopErr := RunPageLoop(ctx, start, fetch, retry, s.Logger)
	if loopErr != nil {
		outcome := RunOutcome{
			Result:     models.ResultFailure,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
		}
		if err := s.Ledger.CommitRun(ctx, models.ActionImport, entityKind, loop.Cursor, resume.Watermark, outcome); err != nil && s.Logger != nil {
			s.Logger.Warn("failed to commit failed run", zap.String("entity", entityKind), zap.Error(err))
		}
		return RunReport{EntityKind: entityKind, Result: models.ResultFailure, Cursor: loop.Cursor}, loopErr
	}

	for _, page := range loop.FailedPages {
		s.recordFailure(ctx, entityKind, fmt.Sprintf("page:%d", page), "page skipped after retry budget")
	}

	imported, failed, maxSeen, err := s.consume(ctx, entityKind, loop.Items)
	if err != nil {
		outcome := RunOutcome{
			Result:     models.ResultFailure,
			Imported:   imported,
			Failed:     failed,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
		}
		if cerr := s.Ledger.CommitRun(ctx, models.ActionImport, entityKind, loop.Cursor, resume.Watermark, outcome); cerr != nil && s.Logger != nil {
			s.Logger.Warn("failed to commit failed run", zap.String("entity", entityKind), zap.Error(cerr))
		}
		return RunReport{EntityKind: entityKind, Result: models.ResultFailure, Imported: imported, Failed: failed, Cursor: loop.Cursor}, err
	}
	failed += len(loop.FailedPages)

	result := models.ResultSuccess
	if loop.Partial || failed > 0 {
		result = models.ResultPartial
	}

	watermark := resume.Watermark
	if stream.UseWatermark {
		if maxSeen != nil {
			watermark = maxSeen
		} else if watermark == nil {
			watermark = &started
		}
	}

	finished := time.Now().UTC()
	outcome := RunOutcome{
		Result:     result,
		Imported:   imported,
		Failed:     failed,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if err := s.Ledger.CommitRun(ctx, models.ActionImport, entityKind, loop.Cursor, watermark, outcome); err != nil {
		return RunReport{}, err
	}

	if s.Logger != nil {
		s.Logger.Info("ingestion run finished",
			zap.String("entity", entityKind),
			zap.String("result", result),
			zap.Int("imported", imported),
			zap.Int("failed", failed),
			zap.Int("pages", loop.Pages))
	}
	return RunReport{
		EntityKind: entityKind,
		Result:     result,
		Imported:   imported,
		Failed:     failed,
		Pages:      loop.Pages,
		Cursor:     loop.Cursor,
	}, nil
}

// consume decodes and reconciles fetched items. Individual malformed items are
// rejected and recorded, never imported half-parsed; repository errors abort
// the whole consumption.
func (s *IngestService) consume(ctx context.Context, entityKind string, items []json.RawMessage) (int, int, *time.Time, error) {
	switch entityKind {
	case models.EntityArticle:
		return s.consumeArticles(ctx, items)
	case models.EntityCategory:
		return s.consumeCategories(ctx, items)
	case models.EntityAttribute:
		return s.consumeAttributes(ctx, items)
	case models.EntityOrder:
		return s.consumeOrders(ctx, items)
	default:
		return 0, 0, nil, fmt.Errorf("unsupported entity kind: %s", entityKind)
	}
}

func (s *IngestService) consumeArticles(ctx context.Context, items []json.RawMessage) (int, int, *time.Time, error) {
	articles := make([]platform.Article, 0, len(items))
	failed := 0
	var maxSeen *time.Time
	for _, raw := range items {
		art, err := platform.DecodeArticle(raw)
		if err != nil {
			failed++
			s.recordFailure(ctx, models.EntityArticle, probeIdentifier(raw), err.Error())
			continue
		}
		if art.Status != 1 {
			continue
		}
		if art.UpdatedAt != nil && (maxSeen == nil || art.UpdatedAt.After(*maxSeen)) {
			maxSeen = art.UpdatedAt
		}
		articles = append(articles, art)
	}
	imported, err := s.Reconciler.ReconcileArticles(ctx, articles)
	if err != nil {
		return imported, failed, maxSeen, err
	}
	return imported, failed, maxSeen, nil
}

func (s *IngestService) consumeCategories(ctx context.Context, items []json.RawMessage) (int, int, *time.Time, error) {
	categories := make([]platform.Category, 0, len(items))
	failed := 0
	for _, raw := range items {
		cat, err := platform.DecodeCategory(raw)
		if err != nil {
			failed++
			s.recordFailure(ctx, models.EntityCategory, probeIdentifier(raw), err.Error())
			continue
		}
		if !cat.IsActive {
			continue
		}
		categories = append(categories, cat)
	}
	imported, err := s.Reconciler.ReconcileCategories(ctx, categories)
	return imported, failed, nil, err
}

func (s *IngestService) consumeAttributes(ctx context.Context, items []json.RawMessage) (int, int, *time.Time, error) {
	attributes := make([]platform.Attribute, 0, len(items))
	failed := 0
	for _, raw := range items {
		attr, err := platform.DecodeAttribute(raw)
		if err != nil {
			failed++
			s.recordFailure(ctx, models.EntityAttribute, probeIdentifier(raw), err.Error())
			continue
		}
		attributes = append(attributes, attr)
	}
	imported, err := s.Reconciler.ReconcileAttributes(ctx, attributes)
	return imported, failed, nil, err
}

func (s *IngestService) consumeOrders(ctx context.Context, items []json.RawMessage) (int, int, *time.Time, error) {
	imported := 0
	failed := 0
	var maxSeen *time.Time
	for _, raw := range items {
		ord, err := platform.DecodeOrder(raw)
		if err != nil {
			failed++
			s.recordFailure(ctx, models.EntityOrder, probeIdentifier(raw), err.Error())
			continue
		}
		if ord.PlacedAt != nil && (maxSeen == nil || ord.PlacedAt.After(*maxSeen)) {
			maxSeen = ord.PlacedAt
		}
		order, created, err := s.Reconciler.ReconcileOrder(ctx, ord, s.DefaultWarehouseID)
		if err != nil {
			if isValidationError(err) {
				failed++
				s.recordFailure(ctx, models.EntityOrder, ord.IncrementID, err.Error())
				continue
			}
			return imported, failed, maxSeen, err
		}
		if created {
			imported++
			continue
		}
		// Existing order: fold in the platform's current lifecycle state.
		if err := s.States.ApplyPlatformState(ctx, order, ord.State); err != nil {
			return imported, failed, maxSeen, err
		}
	}
	return imported, failed, maxSeen, nil
}

// ImportSingleArticle is the on-demand single-SKU import.
func (s *IngestService) ImportSingleArticle(ctx context.Context, sku string) error {
	raw, err := s.Platform.FetchSingle(ctx, platform.ResourceProducts, sku)
	if err != nil {
		s.recordFailure(ctx, models.EntityArticle, sku, err.Error())
		return err
	}
	art, err := platform.DecodeArticle(raw)
	if err != nil {
		s.recordFailure(ctx, models.EntityArticle, sku, err.Error())
		return err
	}
	_, err = s.Reconciler.ReconcileArticles(ctx, []platform.Article{art})
	return err
}

// ImportSingleOrder is the on-demand single-order import. It returns the
// internal order so callers can allocate it immediately.
func (s *IngestService) ImportSingleOrder(ctx context.Context, externalID string) (*models.Order, error) {
	raw, err := s.Platform.FetchSingle(ctx, platform.ResourceOrders, externalID)
	if err != nil {
		s.recordFailure(ctx, models.EntityOrder, externalID, err.Error())
		return nil, err
	}
	ord, err := platform.DecodeOrder(raw)
	if err != nil {
		s.recordFailure(ctx, models.EntityOrder, externalID, err.Error())
		return nil, err
	}
	order, created, err := s.Reconciler.ReconcileOrder(ctx, ord, s.DefaultWarehouseID)
	if err != nil {
		return nil, err
	}
	if !created {
		if err := s.States.ApplyPlatformState(ctx, order, ord.State); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (s *IngestService) recordFailure(ctx context.Context, entityKind, externalID, reason string) {
	err := s.Repo.InsertCrawlFailure(ctx, &models.CrawlFailure{
		EntityKind: entityKind,
		ExternalID: externalID,
		Reason:     reason,
	})
	if err != nil && s.Logger != nil {
		s.Logger.Warn("failed to record crawl failure",
			zap.String("entity", entityKind),
			zap.String("external_id", externalID),
			zap.Error(err))
	}
}

func isValidationError(err error) bool {
	return err != nil && (errors.Is(err, repository.ErrVariantNotFound) || errors.Is(err, repository.ErrWarehouseNotFound))
}

// probeIdentifier pulls a best-effort identifier out of a raw payload that
// failed full decoding, so the crawl-failure log still points somewhere.
func probeIdentifier(raw json.RawMessage) string {
	var probe struct {
		SKU         string `json:"sku"`
		IncrementID string `json:"increment_id"`
		ID          int64  `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil {
		if probe.SKU != "" {
			return probe.SKU
		}
		if probe.IncrementID != "" {
			return probe.IncrementID
		}
		if probe.ID != 0 {
			return strconv.FormatInt(probe.ID, 10)
		}
	}
	return "unknown"
}
