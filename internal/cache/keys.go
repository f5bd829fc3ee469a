package cache

import "fmt"

// KeyProductDetail is the cache key for a product detail document.
func KeyProductDetail(productID string) string {
	return "catalog:product:" + productID
}

// KeyServiceability is the cache key for a serviceability answer for one pincode
// and package shape.
func KeyServiceability(pincode string, weightKg, lengthCm, breadthCm, heightCm float64) string {
	return fmt.Sprintf("shipping:svc:%s:%.3f:%.1fx%.1fx%.1f", pincode, weightKg, lengthCm, breadthCm, heightCm)
}
