package entity

// Product 产品目录条目 (static catalog, no persistence)
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Category    string `json:"category"`
}

// Catalog is the fixed marketing catalog shown on the landing page.
var Catalog = []Product{
	{
		ID:          "PROD-001",
		Name:        "Eco-Friendly Yoga Mat",
		Description: "Premium biodegradable yoga mat with superior grip and cushioning for your daily practice.",
		Image:       "https://images.unsplash.com/photo-1592432676556-224451baac49?auto=format&fit=crop&q=80&w=800",
		Category:    "Wellness",
	},
	{
		ID:          "PROD-002",
		Name:        "Pro Noise-Cancelling Headphones",
		Description: "Immersive sound quality with advanced active noise cancellation for creators on the go.",
		Image:       "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?auto=format&fit=crop&q=80&w=800",
		Category:    "Electronics",
	},
	{
		ID:          "PROD-003",
		Name:        "Minimalist Leather Backpack",
		Description: "Handcrafted from full-grain leather, designed for both style and functionality in the city.",
		Image:       "https://images.unsplash.com/photo-1548036328-c9fa89d128fa?auto=format&fit=crop&q=80&w=800",
		Category:    "Fashion",
	},
	{
		ID:          "PROD-004",
		Name:        "Smart Hydration Bottle",
		Description: "Tracks your water intake and syncs with your phone to keep you hydrated all day.",
		Image:       "https://images.unsplash.com/photo-1602143352538-2a155030807b?auto=format&fit=crop&q=80&w=800",
		Category:    "Lifestyle",
	},
	{
		ID:          "PROD-005",
		Name:        "Organic Coffee Blend",
		Description: "Ethically sourced beans from high-altitude farms, roasted to perfection for a rich flavor.",
		Image:       "https://images.unsplash.com/photo-1559056199-641a0ac8b55e?auto=format&fit=crop&q=80&w=800",
		Category:    "Food & Drink",
	},
	{
		ID:          "PROD-006",
		Name:        "Portable LED Ring Light",
		Description: "Perfect lighting for content creators, featuring adjustable brightness and color temperature.",
		Image:       "https://images.unsplash.com/photo-1590602847861-f357a9332bbc?auto=format&fit=crop&q=80&w=800",
		Category:    "Content Creation",
	},
}

// FindProduct returns the catalog entry for id, or nil when unknown.
func FindProduct(id string) *Product {
	for i := range Catalog {
		if Catalog[i].ID == id {
			return &Catalog[i]
		}
	}
	return nil
}
