// Package shipping answers pincode serviceability questions for checkout.
package shipping

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/cache"
	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/obs"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

// Defaults apply when catalog data lacks weight or dimensions.
type Defaults struct {
	WeightKg    float64
	DimensionCm float64
}

// Service checks serviceability with a short-lived cache in front of the client.
type Service struct {
	Client   Client
	Cache    *cache.JSON
	Defaults Defaults
	Logger   zerolog.Logger
}

// Package derives the shipment shape for items: weights add up, each dimension
// is the largest across items.
func (s *Service) Package(pincode string, items []pricing.LineItem) Request {
	req := Request{Pincode: strings.TrimSpace(pincode)}
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		w := it.WeightKg
		if w <= 0 {
			w = s.defaults().WeightKg
		}
		req.Weight += w * float64(it.Quantity)
		req.Length = math.Max(req.Length, it.LengthCm)
		req.Breadth = math.Max(req.Breadth, it.BreadthCm)
		req.Height = math.Max(req.Height, it.HeightCm)
	}
	return s.fill(req)
}

func (s *Service) defaults() Defaults {
	d := s.Defaults
	if d.WeightKg <= 0 {
		d.WeightKg = 0.5
	}
	if d.DimensionCm <= 0 {
		d.DimensionCm = 10
	}
	return d
}

func (s *Service) fill(req Request) Request {
	d := s.defaults()
	if req.Weight <= 0 {
		req.Weight = d.WeightKg
	}
	if req.Length <= 0 {
		req.Length = d.DimensionCm
	}
	if req.Breadth <= 0 {
		req.Breadth = d.DimensionCm
	}
	if req.Height <= 0 {
		req.Height = d.DimensionCm
	}
	req.Weight = math.Round(req.Weight*1000) / 1000
	return req
}

// CheckItems checks serviceability of items to pincode.
func (s *Service) CheckItems(ctx context.Context, pincode string, items []pricing.LineItem) (Result, error) {
	return s.Check(ctx, s.Package(pincode, items))
}

// Check validates req, fills defaults and returns the (possibly cached) answer.
func (s *Service) Check(ctx context.Context, req Request) (Result, error) {
	req.Pincode = strings.TrimSpace(req.Pincode)
	if err := common.ValidateStruct(req); err != nil {
		return Result{}, err
	}
	req = s.fill(req)
	key := cache.KeyServiceability(req.Pincode, req.Weight, req.Length, req.Breadth, req.Height)
	var cached Result
	if ok, err := s.Cache.Get(ctx, key, &cached); err == nil && ok {
		obs.Inc(obs.ServiceabilityChecks, "cached")
		return cached, nil
	}
	res, err := s.Client.Check(ctx, req)
	if err != nil {
		obs.Inc(obs.ServiceabilityChecks, "error")
		s.Logger.Warn().Err(err).Str("pincode", req.Pincode).Msg("serviceability_check_failed")
		return Result{}, common.Upstream(err)
	}
	if !res.Serviceable {
		res.COD = false
		obs.Inc(obs.ServiceabilityChecks, "unserviceable")
	} else {
		obs.Inc(obs.ServiceabilityChecks, "ok")
	}
	if err := s.Cache.Set(ctx, key, res); err != nil {
		s.Logger.Debug().Err(err).Msg("serviceability_cache_write_failed")
	}
	return res, nil
}
