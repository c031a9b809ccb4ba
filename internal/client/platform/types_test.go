package platform

import (
	"testing"
	"time"
)

func TestDecodeArticle(t *testing.T) {
	raw := []byte(`{
		"id": 11,
		"sku": "SKU-A",
		"name": "Widget",
		"status": 1,
		"price": 19.9,
		"updated_at": "2026-08-01 10:30:00",
		"extension_attributes": {"category_links": [{"category_id": "42"}]}
	}`)
	art, err := DecodeArticle(raw)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if art.SKU != "SKU-A" || art.Name != "Widget" {
		t.Fatalf("art=%+v", art)
	}
	if len(art.CategoryIDs) != 1 || art.CategoryIDs[0] != "42" {
		t.Fatalf("categories=%v want [42]", art.CategoryIDs)
	}
	want := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)
	if art.UpdatedAt == nil || !art.UpdatedAt.Equal(want) {
		t.Fatalf("updated_at=%v want %v", art.UpdatedAt, want)
	}
	if len(art.Raw()) == 0 {
		t.Fatalf("raw payload lost")
	}
}

func TestDecodeArticle_MissingFields(t *testing.T) {
	if _, err := DecodeArticle([]byte(`{"id":1,"name":"no sku"}`)); err == nil {
		t.Fatalf("expected error for missing sku")
	}
	if _, err := DecodeArticle([]byte(`{"id":1,"sku":"SKU-A"}`)); err == nil {
		t.Fatalf("expected error for missing name")
	}
	if _, err := DecodeArticle([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestDecodeCategory_Validation(t *testing.T) {
	cat, err := DecodeCategory([]byte(`{"id":2,"parent_id":1,"name":"Shoes","is_active":true}`))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cat.ID != 2 || cat.ParentID != 1 || !cat.IsActive {
		t.Fatalf("cat=%+v", cat)
	}
	if _, err := DecodeCategory([]byte(`{"name":"no id"}`)); err == nil {
		t.Fatalf("expected error for missing id")
	}
	if _, err := DecodeCategory([]byte(`{"id":3}`)); err == nil {
		t.Fatalf("expected error for missing name")
	}
}

func TestDecodeAttribute(t *testing.T) {
	attr, err := DecodeAttribute([]byte(`{"attribute_code":"color","options":[{"value":"1","label":"Red"}]}`))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if attr.AttributeCode != "color" || len(attr.Options) != 1 {
		t.Fatalf("attr=%+v", attr)
	}
	if _, err := DecodeAttribute([]byte(`{"options":[]}`)); err == nil {
		t.Fatalf("expected error for missing code")
	}
}

func TestDecodeOrder_Validation(t *testing.T) {
	raw := []byte(`{
		"entity_id": 9,
		"increment_id": "100000042",
		"state": "processing",
		"created_at": "2026-08-05T09:00:00Z",
		"items": [{"sku":"SKU-A","qty_ordered":2,"price":19.9}]
	}`)
	ord, err := DecodeOrder(raw)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if ord.IncrementID != "100000042" || len(ord.Lines) != 1 {
		t.Fatalf("ord=%+v", ord)
	}
	if ord.PlacedAt == nil {
		t.Fatalf("placed_at not parsed")
	}

	if _, err := DecodeOrder([]byte(`{"items":[{"sku":"A","qty_ordered":1}]}`)); err == nil {
		t.Fatalf("expected error for missing increment_id")
	}
	if _, err := DecodeOrder([]byte(`{"increment_id":"1","items":[]}`)); err == nil {
		t.Fatalf("expected error for empty items")
	}
	if _, err := DecodeOrder([]byte(`{"increment_id":"1","items":[{"qty_ordered":1}]}`)); err == nil {
		t.Fatalf("expected error for item without sku")
	}
	if _, err := DecodeOrder([]byte(`{"increment_id":"1","items":[{"sku":"A","qty_ordered":0}]}`)); err == nil {
		t.Fatalf("expected error for non-positive qty")
	}
}

func TestInAgencyDelivery(t *testing.T) {
	cases := []struct {
		method string
		want   bool
	}{
		{"flatrate_flatrate", false},
		{"instore_pickup", true},
		{"storepickup_storepickup", true},
		{"agency_collect", true},
		{"", false},
	}
	for _, tc := range cases {
		ord := Order{ShippingMethod: tc.method}
		if got := ord.InAgencyDelivery(); got != tc.want {
			t.Fatalf("%q: got %v want %v", tc.method, got, tc.want)
		}
	}
}

func TestParsePlatformTime(t *testing.T) {
	if got := parsePlatformTime("2026-08-01 10:30:00"); got == nil {
		t.Fatalf("space-separated layout not parsed")
	}
	if got := parsePlatformTime("2026-08-01T10:30:00Z"); got == nil {
		t.Fatalf("RFC3339 layout not parsed")
	}
	if got := parsePlatformTime(""); got != nil {
		t.Fatalf("empty string should yield nil")
	}
	if got := parsePlatformTime("yesterday"); got != nil {
		t.Fatalf("garbage should yield nil")
	}
}
