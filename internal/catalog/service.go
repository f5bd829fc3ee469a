package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-checkout/internal/cache"
	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

// Service serves listing and detail reads, caching details in Redis.
type Service struct {
	store        Store
	cache        *cache.JSON
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *cache.JSON
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query       string
	InStockOnly bool
	Sort        string
	Page        int
	Limit       int
}

func (p ListParams) orderBy() string {
	switch p.Sort {
	case "price_asc":
		return "price ASC, id"
	case "price_desc":
		return "price DESC, id"
	default:
		return "created_at DESC, id"
	}
}

// ProductListItem is one row of the listing.
type ProductListItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Brand    string          `json:"brand"`
	ImageURL string          `json:"image_url"`
	Price    decimal.Decimal `json:"price"`
	MRP      decimal.Decimal `json:"mrp"`
	InStock  bool            `json:"in_stock"`
	IsCOD    *bool           `json:"is_cod,omitempty"`
}

// Variant is a purchasable option of a product.
type Variant struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	SKU      string          `json:"sku"`
	Price    decimal.Decimal `json:"price"`
	MRP      decimal.Decimal `json:"mrp"`
	Stock    int             `json:"stock"`
	ImageURL string          `json:"image_url"`
}

// ProductDetail is the document returned by get_product_detail.
type ProductDetail struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	Price       decimal.Decimal `json:"price"`
	MRP         decimal.Decimal `json:"mrp"`
	Stock       int             `json:"stock"`
	IsCOD       *bool           `json:"is_cod"`
	WeightKg    *float64        `json:"weight_kg"`
	LengthCm    *float64        `json:"length_cm"`
	BreadthCm   *float64        `json:"breadth_cm"`
	HeightCm    *float64        `json:"height_cm"`
	Variants    []Variant       `json:"variants"`
}

// ProductListResult is a page of listing rows.
type ProductListResult struct {
	Items []ProductListItem
	Total int64
	Page  int
	Limit int
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	s := &Service{store: cfg.Store, cache: cfg.Cache, defaultLimit: cfg.DefaultLimit, maxLimit: cfg.MaxLimit}
	if s.defaultLimit <= 0 {
		s.defaultLimit = 20
	}
	if s.maxLimit <= 0 {
		s.maxLimit = 100
	}
	return s, nil
}

// ParseListParams reads q, in_stock, sort, page and limit from the query string.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	p := ListParams{Query: strings.TrimSpace(values.Get("q")), Page: 1, Limit: s.defaultLimit}
	if v := values.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, common.Validation("page must be a positive number")
		}
		p.Page = n
	}
	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, common.Validation("limit must be a positive number")
		}
		p.Limit = min(n, s.maxLimit)
	}
	if v := values.Get("in_stock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, common.Validation("in_stock must be true or false")
		}
		p.InStockOnly = b
	}
	switch sort := values.Get("sort"); sort {
	case "", "newest", "price_asc", "price_desc":
		p.Sort = sort
	default:
		return p, common.Validation("sort must be one of [newest price_asc price_desc]")
	}
	return p, nil
}

// ListProducts returns a page of the product listing.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	items, total, err := s.store.ListProducts(ctx, params)
	if err != nil {
		return ProductListResult{}, common.Upstream(err)
	}
	if items == nil {
		items = []ProductListItem{}
	}
	return ProductListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetProductDetail returns a product, served from cache when possible.
func (s *Service) GetProductDetail(ctx context.Context, productID string) (ProductDetail, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return ProductDetail{}, common.NotFound("product")
	}
	detail, err := cache.GetOrLoad(ctx, s.cache, cache.KeyProductDetail(productID), func(ctx context.Context) (ProductDetail, error) {
		return s.store.ProductDetail(ctx, productID)
	})
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return ProductDetail{}, common.NotFound("product")
		}
		return ProductDetail{}, common.Upstream(err)
	}
	return detail, nil
}

// LineItemFor synthesises the single line item of a buy-now checkout.
func (s *Service) LineItemFor(ctx context.Context, productID, variantID string, quantity int) (pricing.LineItem, error) {
	detail, err := s.GetProductDetail(ctx, productID)
	if err != nil {
		return pricing.LineItem{}, err
	}
	item := pricing.LineItem{
		ProductID: detail.ID,
		Name:      detail.Name,
		ImageURL:  detail.ImageURL,
		UnitPrice: detail.Price,
		UnitMRP:   detail.MRP,
		Stock:     detail.Stock,
		IsCOD:     detail.IsCOD,
		WeightKg:  deref(detail.WeightKg),
		LengthCm:  deref(detail.LengthCm),
		BreadthCm: deref(detail.BreadthCm),
		HeightCm:  deref(detail.HeightCm),
	}
	if variantID != "" {
		v, ok := findVariant(detail.Variants, variantID)
		if !ok {
			return pricing.LineItem{}, common.NotFound("variant")
		}
		item.VariantID = v.ID
		item.VariantName = v.Name
		item.UnitPrice = v.Price
		item.UnitMRP = v.MRP
		item.Stock = v.Stock
		if v.ImageURL != "" {
			item.ImageURL = v.ImageURL
		}
	} else if len(detail.Variants) > 0 {
		return pricing.LineItem{}, common.Validation("variant_id is required for this product")
	}
	if item.Stock <= 0 {
		return pricing.LineItem{}, common.NewAppError("OUT_OF_STOCK", "this item is out of stock", http.StatusConflict, nil)
	}
	item.Quantity = pricing.ClampQuantity(quantity, item.Stock)
	return item, nil
}

func findVariant(variants []Variant, id string) (Variant, bool) {
	for _, v := range variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
