package platform

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Raw payload records, validated at the ingestion boundary. Decode functions
// reject malformed items so reconciliation only ever sees well-formed input.

const (
	ResourceProducts   = "products"
	ResourceCategories = "categories/list"
	ResourceAttributes = "products/attributes"
	ResourceOrders     = "orders"
)

type Article struct {
	ID         int64      `json:"id"`
	SKU        string     `json:"sku"`
	Name       string     `json:"name"`
	Status     int        `json:"status"`
	Visibility int        `json:"visibility"`
	TypeID     string     `json:"type_id"`
	Price      float64    `json:"price"`
	UpdatedAt  *time.Time `json:"-"`

	CategoryIDs []string `json:"-"`

	raw json.RawMessage
}

func (a Article) Raw() json.RawMessage { return a.raw }

type articleWire struct {
	ID         int64   `json:"id"`
	SKU        string  `json:"sku"`
	Name       string  `json:"name"`
	Status     int     `json:"status"`
	Visibility int     `json:"visibility"`
	TypeID     string  `json:"type_id"`
	Price      float64 `json:"price"`
	UpdatedAt  string  `json:"updated_at"`

	ExtensionAttributes struct {
		CategoryLinks []struct {
			CategoryID string `json:"category_id"`
		} `json:"category_links"`
	} `json:"extension_attributes"`
}

func DecodeArticle(raw json.RawMessage) (Article, error) {
	var wire articleWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Article{}, fmt.Errorf("decode article: %w", err)
	}
	if wire.SKU == "" {
		return Article{}, fmt.Errorf("article missing sku")
	}
	if wire.Name == "" {
		return Article{}, fmt.Errorf("article %s missing name", wire.SKU)
	}
	art := Article{
		ID:         wire.ID,
		SKU:        wire.SKU,
		Name:       wire.Name,
		Status:     wire.Status,
		Visibility: wire.Visibility,
		TypeID:     wire.TypeID,
		Price:      wire.Price,
		raw:        raw,
	}
	if t := parsePlatformTime(wire.UpdatedAt); t != nil {
		art.UpdatedAt = t
	}
	for _, link := range wire.ExtensionAttributes.CategoryLinks {
		if link.CategoryID != "" {
			art.CategoryIDs = append(art.CategoryIDs, link.CategoryID)
		}
	}
	return art, nil
}

type Category struct {
	ID       int64  `json:"id"`
	ParentID int64  `json:"parent_id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`

	raw json.RawMessage
}

func (c Category) Raw() json.RawMessage { return c.raw }

func DecodeCategory(raw json.RawMessage) (Category, error) {
	var cat Category
	if err := json.Unmarshal(raw, &cat); err != nil {
		return Category{}, fmt.Errorf("decode category: %w", err)
	}
	if cat.ID == 0 {
		return Category{}, fmt.Errorf("category missing id")
	}
	if cat.Name == "" {
		return Category{}, fmt.Errorf("category %d missing name", cat.ID)
	}
	cat.raw = raw
	return cat, nil
}

type Attribute struct {
	AttributeCode string            `json:"attribute_code"`
	Options       []AttributeOption `json:"options"`

	raw json.RawMessage
}

type AttributeOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func (a Attribute) Raw() json.RawMessage { return a.raw }

func DecodeAttribute(raw json.RawMessage) (Attribute, error) {
	var attr Attribute
	if err := json.Unmarshal(raw, &attr); err != nil {
		return Attribute{}, fmt.Errorf("decode attribute: %w", err)
	}
	if attr.AttributeCode == "" {
		return Attribute{}, fmt.Errorf("attribute missing code")
	}
	attr.raw = raw
	return attr, nil
}

type Order struct {
	EntityID       int64  `json:"entity_id"`
	IncrementID    string `json:"increment_id"`
	State          string `json:"state"`
	Status         string `json:"status"`
	ShippingMethod string `json:"shipping_method"`
	Lines          []OrderItem
	PlacedAt       *time.Time

	raw json.RawMessage
}

func (o Order) Raw() json.RawMessage { return o.raw }

type OrderItem struct {
	SKU    string  `json:"sku"`
	Qty    int     `json:"qty_ordered"`
	Price  float64 `json:"price"`
	TypeID string  `json:"product_type"`
}

type orderWire struct {
	EntityID       int64       `json:"entity_id"`
	IncrementID    string      `json:"increment_id"`
	State          string      `json:"state"`
	Status         string      `json:"status"`
	ShippingMethod string      `json:"shipping_method"`
	CreatedAt      string      `json:"created_at"`
	Items          []OrderItem `json:"items"`
}

func DecodeOrder(raw json.RawMessage) (Order, error) {
	var wire orderWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Order{}, fmt.Errorf("decode order: %w", err)
	}
	if wire.IncrementID == "" {
		return Order{}, fmt.Errorf("order missing increment_id")
	}
	if len(wire.Items) == 0 {
		return Order{}, fmt.Errorf("order %s has no items", wire.IncrementID)
	}
	for _, item := range wire.Items {
		if item.SKU == "" {
			return Order{}, fmt.Errorf("order %s has an item without sku", wire.IncrementID)
		}
		if item.Qty <= 0 {
			return Order{}, fmt.Errorf("order %s item %s has non-positive qty", wire.IncrementID, item.SKU)
		}
	}
	ord := Order{
		EntityID:       wire.EntityID,
		IncrementID:    wire.IncrementID,
		State:          wire.State,
		Status:         wire.Status,
		ShippingMethod: wire.ShippingMethod,
		Lines:          wire.Items,
		PlacedAt:       parsePlatformTime(wire.CreatedAt),
		raw:            raw,
	}
	return ord, nil
}

// InAgencyDelivery detects pickup-style shipping methods. Orders collected at
// an agency never trigger inter-warehouse transfers.
func (o Order) InAgencyDelivery() bool {
	method := strings.ToLower(o.ShippingMethod)
	return strings.Contains(method, "pickup") || strings.Contains(method, "instore") || strings.Contains(method, "agency")
}

func parsePlatformTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
