package main

import (
	"database/sql"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// seedNS keeps seeded ids stable so the seeder can be re-run.
var seedNS = uuid.MustParse("6f1c1a52-8d3e-4c55-9d1b-3f7e2a9c0b11")

func seedID(kind, key string) string {
	return uuid.NewSHA1(seedNS, []byte(kind+":"+key)).String()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedUsers(db)
	seedCatalog(db)
	seedCoupons(db)
	seedAddresses(db)

	log.Println("Seeding completed successfully!")
}

var users = []struct {
	Phone string
	Name  string
	Email string
}{
	{"9876543210", "Asha Rao", "asha@example.com"},
	{"9812345678", "Vikram Shah", "vikram@example.com"},
	{"9000000001", "Test Buyer", ""},
}

func seedUsers(db *sql.DB) {
	log.Println("Seeding users...")
	for _, u := range users {
		_, err := db.Exec(`
			INSERT INTO users (id, phone, name, email)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (phone) DO NOTHING`,
			seedID("user", u.Phone), u.Phone, u.Name, u.Email)
		if err != nil {
			log.Printf("Failed to seed user %s: %v", u.Phone, err)
		}
	}
}

type variantSeed struct {
	Name  string
	Price string
	MRP   string
	Stock int
}

func seedCatalog(db *sql.DB) {
	// is_cod nil leaves the product COD-ineligible.
	yes, no := true, false
	products := []struct {
		Slug     string
		Name     string
		Brand    string
		Price    string
		MRP      string
		Stock    int
		COD      *bool
		WeightKg float64
		Image    string
		Variants []variantSeed
	}{
		{"cotton-kurta", "Cotton Kurta", "Fabindia", "799", "1299", 0, &yes, 0.4, "https://images.unsplash.com/photo-1583391733956-6c78276477e2?w=800", []variantSeed{
			{"S", "799", "1299", 12}, {"M", "799", "1299", 20}, {"L", "849", "1299", 0},
		}},
		{"running-shoes", "Running Shoes", "Asics", "3499", "4999", 35, &yes, 0.9, "https://images.unsplash.com/photo-1542291026-7eec264c27ff?w=800", nil},
		{"steel-bottle", "Steel Water Bottle", "Milton", "399", "499", 120, &yes, 0.3, "https://images.unsplash.com/photo-1602143407151-7111542de6e8?w=800", nil},
		{"wireless-earbuds", "Wireless Earbuds", "boAt", "1299", "3990", 60, &no, 0.2, "https://images.unsplash.com/photo-1590658268037-6bf12165a8df?w=800", nil},
		{"silk-saree", "Banarasi Silk Saree", "Weavers", "5999", "8999", 4, nil, 0.8, "https://images.unsplash.com/photo-1610030469983-98e550d6193c?w=800", nil},
		{"yoga-mat", "Yoga Mat", "Decathlon", "699", "999", 0, &yes, 1.2, "https://images.unsplash.com/photo-1592432678016-e910b452f9a2?w=800", nil},
	}

	log.Println("Seeding products...")
	for _, p := range products {
		id := seedID("product", p.Slug)
		var cod any
		if p.COD != nil {
			cod = *p.COD
		}
		_, err := db.Exec(`
			INSERT INTO products (id, name, brand, image_url, price, mrp, stock, is_cod, weight_kg, length_cm, breadth_cm, height_cm)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, 30, 20, 10)
			ON CONFLICT (id) DO UPDATE SET
				price = EXCLUDED.price,
				mrp = EXCLUDED.mrp,
				stock = EXCLUDED.stock,
				is_cod = EXCLUDED.is_cod`,
			id, p.Name, p.Brand, p.Image, p.Price, p.MRP, p.Stock, cod, p.WeightKg)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Name, err)
			continue
		}

		for _, v := range p.Variants {
			sku := strings.ToUpper(strings.ReplaceAll(p.Slug, "-", "")) + "-" + v.Name
			_, err := db.Exec(`
				INSERT INTO product_variants (id, product_id, name, sku, price, mrp, stock)
				VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7)
				ON CONFLICT (sku) DO UPDATE SET
					stock = EXCLUDED.stock,
					price = EXCLUDED.price,
					mrp = EXCLUDED.mrp`,
				seedID("variant", sku), id, v.Name, sku, v.Price, v.MRP, v.Stock)
			if err != nil {
				log.Printf("Failed to seed variant %s: %v", sku, err)
			}
		}
	}
}

func seedCoupons(db *sql.DB) {
	coupons := []struct {
		Code        string
		Description string
		Type        string
		Value       string
		MaxDiscount any
		MinOrder    string
		UsageLimit  any
	}{
		{"WELCOME10", "10% off your first order", "percentage", "10", "200", "499", nil},
		{"FLAT150", "Flat 150 off above 1499", "fixed", "150", nil, "1499", nil},
		{"FESTIVE25", "25% off, limited run", "percentage", "25", "500", "999", 100},
	}

	log.Println("Seeding coupons...")
	for _, c := range coupons {
		_, err := db.Exec(`
			INSERT INTO coupons (code, description, discount_type, discount_value, max_discount_amount, min_order_value, start_date, end_date, usage_limit)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, now(), now() + interval '1 year', $7)
			ON CONFLICT ((lower(code))) DO NOTHING`,
			c.Code, c.Description, c.Type, c.Value, c.MaxDiscount, c.MinOrder, c.UsageLimit)
		if err != nil {
			log.Printf("Failed to seed coupon %s: %v", c.Code, err)
		}
	}
}

func seedAddresses(db *sql.DB) {
	addresses := []struct {
		Phone   string
		Name    string
		Line1   string
		City    string
		State   string
		Pincode string
		Default bool
	}{
		{"9876543210", "Asha Rao", "12 MG Road", "Bengaluru", "Karnataka", "560001", true},
		{"9876543210", "Asha Rao", "Flat 4B, Lake View", "Kochi", "Kerala", "682001", false},
		// 799999 is unserviceable with the mock shipping provider.
		{"9812345678", "Vikram Shah", "Plot 7, Sector 21", "Remote Town", "Gujarat", "799999", true},
	}

	log.Println("Seeding addresses...")
	for _, a := range addresses {
		_, err := db.Exec(`
			INSERT INTO addresses (id, user_id, name, phone, line1, city, state, pincode, is_default)
			SELECT $1, u.id, $2, $3, $4, $5, $6, $7, $8 FROM users u WHERE u.phone = $3
			ON CONFLICT (id) DO NOTHING`,
			seedID("address", a.Phone+":"+a.Pincode), a.Name, a.Phone, a.Line1, a.City, a.State, a.Pincode, a.Default)
		if err != nil {
			log.Printf("Failed to seed address for %s: %v", a.Phone, err)
		}
	}
}
