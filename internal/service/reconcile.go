package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"stockroom/internal/client/platform"
	"stockroom/internal/models"
	"stockroom/internal/repository"
)

// Normalizer cleans up platform product text. The heuristics live outside this
// core; the default keeps names as-is.
type Normalizer interface {
	ProductName(sku, name string) string
}

type passthroughNormalizer struct{}

func (passthroughNormalizer) ProductName(sku, name string) string { return name }

func NewPassthroughNormalizer() Normalizer { return passthroughNormalizer{} }

// Reconciler turns validated platform payloads into internal catalog and order
// records, de-duplicating by external identifier: an item seen before is
// updated, a new one is created, and nothing is ever created twice.
type Reconciler struct {
	Repo       repository.Repository
	Normalizer Normalizer
	Logger     *zap.Logger
}

func (r *Reconciler) normalizer() Normalizer {
	if r.Normalizer == nil {
		return passthroughNormalizer{}
	}
	return r.Normalizer
}

// ReconcileArticles upserts one product and one variant per accepted article.
func (r *Reconciler) ReconcileArticles(ctx context.Context, articles []platform.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()

	seen := map[string]struct{}{}
	accepted := make([]platform.Article, 0, len(articles))
	categoryExternalIDs := make([]string, 0)
	for _, art := range articles {
		if _, dup := seen[art.SKU]; dup {
			continue
		}
		seen[art.SKU] = struct{}{}
		accepted = append(accepted, art)
		if len(art.CategoryIDs) > 0 {
			categoryExternalIDs = append(categoryExternalIDs, art.CategoryIDs[0])
		}
	}
	if len(accepted) == 0 {
		return 0, nil
	}

	categories, err := r.Repo.FindCategoriesByExternalIDs(ctx, categoryExternalIDs)
	if err != nil {
		return 0, err
	}
	categoryByExternal := map[string]uint64{}
	for _, cat := range categories {
		categoryByExternal[cat.ExternalID] = cat.ID
	}

	products := make([]models.Product, 0, len(accepted))
	productExternalIDs := make([]string, 0, len(accepted))
	for _, art := range accepted {
		externalID := strconv.FormatInt(art.ID, 10)
		productExternalIDs = append(productExternalIDs, externalID)
		product := models.Product{
			ExternalID: externalID,
			Name:       r.normalizer().ProductName(art.SKU, art.Name),
			LastSeenAt: now,
			RawJSON:    datatypes.JSON(art.Raw()),
		}
		if len(art.CategoryIDs) > 0 {
			if id, ok := categoryByExternal[art.CategoryIDs[0]]; ok {
				product.CategoryID = &id
			}
		}
		products = append(products, product)
	}

	if err := r.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return r.Repo.UpsertProductsTx(ctx, tx, products)
	}); err != nil {
		return 0, err
	}

	persisted, err := r.Repo.FindProductsByExternalIDs(ctx, productExternalIDs)
	if err != nil {
		return 0, err
	}
	productByExternal := map[string]uint64{}
	for _, p := range persisted {
		productByExternal[p.ExternalID] = p.ID
	}

	variants := make([]models.Variant, 0, len(accepted))
	for _, art := range accepted {
		productID, ok := productByExternal[strconv.FormatInt(art.ID, 10)]
		if !ok {
			continue
		}
		variants = append(variants, models.Variant{
			ProductID:  productID,
			ExternalID: strconv.FormatInt(art.ID, 10),
			SKU:        art.SKU,
			LastSeenAt: now,
			RawJSON:    datatypes.JSON(art.Raw()),
		})
	}
	if err := r.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return r.Repo.UpsertVariantsTx(ctx, tx, variants)
	}); err != nil {
		return 0, err
	}
	return len(accepted), nil
}

// ReconcileCategories upserts categories in two passes: records first, parent
// links second, so a child arriving before its parent still links up.
func (r *Reconciler) ReconcileCategories(ctx context.Context, categories []platform.Category) (int, error) {
	if len(categories) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()

	seen := map[string]struct{}{}
	rows := make([]models.Category, 0, len(categories))
	externalIDs := make([]string, 0, len(categories))
	for _, cat := range categories {
		externalID := strconv.FormatInt(cat.ID, 10)
		if _, dup := seen[externalID]; dup {
			continue
		}
		seen[externalID] = struct{}{}
		rows = append(rows, models.Category{
			ExternalID: externalID,
			Name:       cat.Name,
			LastSeenAt: now,
			RawJSON:    datatypes.JSON(cat.Raw()),
		})
		externalIDs = append(externalIDs, externalID)
		if cat.ParentID > 0 {
			externalIDs = append(externalIDs, strconv.FormatInt(cat.ParentID, 10))
		}
	}

	if err := r.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return r.Repo.UpsertCategoriesTx(ctx, tx, rows)
	}); err != nil {
		return 0, err
	}

	persisted, err := r.Repo.FindCategoriesByExternalIDs(ctx, externalIDs)
	if err != nil {
		return 0, err
	}
	idByExternal := map[string]uint64{}
	for _, cat := range persisted {
		idByExternal[cat.ExternalID] = cat.ID
	}

	linked := make([]models.Category, 0, len(categories))
	for _, cat := range categories {
		if cat.ParentID <= 0 {
			continue
		}
		parentID, ok := idByExternal[strconv.FormatInt(cat.ParentID, 10)]
		if !ok {
			continue
		}
		linked = append(linked, models.Category{
			ExternalID: strconv.FormatInt(cat.ID, 10),
			Name:       cat.Name,
			ParentID:   &parentID,
			LastSeenAt: now,
			RawJSON:    datatypes.JSON(cat.Raw()),
		})
	}
	if len(linked) > 0 {
		if err := r.Repo.InTx(ctx, func(tx *gorm.DB) error {
			return r.Repo.UpsertCategoriesTx(ctx, tx, linked)
		}); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

// ReconcileAttributes flattens attribute option lists into one row per option.
func (r *Reconciler) ReconcileAttributes(ctx context.Context, attributes []platform.Attribute) (int, error) {
	if len(attributes) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([]models.AttributeOption, 0)
	for _, attr := range attributes {
		for _, opt := range attr.Options {
			if opt.Value == "" {
				continue
			}
			rows = append(rows, models.AttributeOption{
				AttributeCode: attr.AttributeCode,
				ExternalID:    opt.Value,
				Label:         opt.Label,
				LastSeenAt:    now,
				RawJSON:       datatypes.JSON(attr.Raw()),
			})
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := r.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return r.Repo.UpsertAttributeOptionsTx(ctx, tx, rows)
	}); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ReconcileOrder creates the internal order for a platform order, or returns
// the already-imported one. Created is false when the order existed before.
func (r *Reconciler) ReconcileOrder(ctx context.Context, ord platform.Order, defaultWarehouseID uint64) (*models.Order, bool, error) {
	existing, err := r.Repo.GetOrderByExternalID(ctx, ord.IncrementID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	skus := make([]string, 0, len(ord.Lines))
	for _, item := range ord.Lines {
		skus = append(skus, item.SKU)
	}
	variants, err := r.Repo.FindVariantsBySKUs(ctx, skus)
	if err != nil {
		return nil, false, err
	}
	variantBySKU := map[string]uint64{}
	for _, v := range variants {
		variantBySKU[v.SKU] = v.ID
	}

	now := time.Now().UTC()
	status, step := MapPlatformState(ord.State)
	deliveryMode := models.DeliveryAtHome
	if ord.InAgencyDelivery() {
		deliveryMode = models.DeliveryInAgency
	}

	order := &models.Order{
		ExternalID:     ord.IncrementID,
		Status:         status,
		Step:           step,
		DeliveryMode:   deliveryMode,
		StoragePointID: defaultWarehouseID,
		PlacedAt:       ord.PlacedAt,
		LastSeenAt:     now,
		RawJSON:        datatypes.JSON(ord.Raw()),
	}
	for _, item := range ord.Lines {
		variantID, ok := variantBySKU[item.SKU]
		if !ok {
			return nil, false, fmt.Errorf("order %s references unknown sku %s: %w",
				ord.IncrementID, item.SKU, repository.ErrVariantNotFound)
		}
		order.Lines = append(order.Lines, models.OrderLine{
			VariantID: variantID,
			Quantity:  item.Qty,
			UnitPrice: decimalFromFloat(item.Price),
		})
	}

	err = r.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := r.Repo.CreateOrderTx(ctx, tx, order); err != nil {
			return err
		}
		return r.Repo.InsertProcessingTx(ctx, tx, &models.OrderProcessing{
			OrderID:   order.ID,
			Status:    status,
			Step:      step,
			StartedAt: now,
		})
	})
	if err != nil {
		return nil, false, err
	}
	return order, true, nil
}

func decimalFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}
