package model

import "time"

// Product represents a catalog entry as stored in the `products`
// table. Prices are kept as float64 dollars to match the API
// surface; checkout converts them to minor units before talking to
// the payment processor.
//
// Fields:
//  ID          – primary key identifier.
//  Name        – product name.
//  Description – free-text description shown in listings.
//  Price       – unit price in major currency units.
//  Image       – public URL of the hosted image, empty when none.
//  Category    – category slug used for filtering.
//  IsFeatured  – whether the product appears in the featured list.
//  CreatedAt   – creation timestamp (drives newest/oldest sort).
//  UpdatedAt   – last update timestamp.
type Product struct {
	ID          uint64    `json:"id"`          // products.id
	Name        string    `json:"name"`        // products.name
	Description string    `json:"description"` // products.description
	Price       float64   `json:"price"`       // products.price
	Image       string    `json:"image"`       // products.image
	Category    string    `json:"category"`    // products.category
	IsFeatured  bool      `json:"isFeatured"`  // products.is_featured
	CreatedAt   time.Time `json:"createdAt"`   // products.created_at
	UpdatedAt   time.Time `json:"updatedAt"`   // products.updated_at
}

// CartProduct is a product joined with the caller's cart quantity.
type CartProduct struct {
	Product
	Quantity uint32 `json:"quantity"`
}
