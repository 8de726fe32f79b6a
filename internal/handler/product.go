package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/evermart/storefront-api/internal/model"
	"github.com/evermart/storefront-api/internal/repository"
	"github.com/evermart/storefront-api/internal/storage"
)

// ProductHandler serves catalog reads for everyone and catalog
// mutations for admins.
type ProductHandler struct {
	Products *repository.ProductRepo
	Featured *repository.FeaturedCache
	Images   storage.ImageStore
	Log      zerolog.Logger
}

func NewProductHandler(products *repository.ProductRepo, featured *repository.FeaturedCache, images storage.ImageStore, log zerolog.Logger) *ProductHandler {
	return &ProductHandler{Products: products, Featured: featured, Images: images, Log: log}
}

type createProductReq struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"` // optional data URL or raw base64
	Category    string  `json:"category"`
}

// shopFilters echoes the resolved filters back to the client.
type shopFilters struct {
	Category string `json:"category"`
	MinPrice string `json:"minPrice"`
	MaxPrice string `json:"maxPrice"`
	Sort     string `json:"sort"`
	Search   string `json:"search"`
}

// GetAll returns every product (admin dashboard listing).
func (h *ProductHandler) GetAll(c echo.Context) error {
	products, err := h.Products.ListAll(c.Request().Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("products: list all failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"products": products})
}

// GetFeatured is the cache-aside read path: serve the cached list
// when present, otherwise hit the database and populate the cache.
// The entry has no TTL; toggling a product's flag refreshes it.
func (h *ProductHandler) GetFeatured(c echo.Context) error {
	ctx := c.Request().Context()
	if cached, ok := h.Featured.Get(ctx); ok {
		return c.JSON(http.StatusOK, cached)
	}
	products, err := h.Products.ListFeatured(ctx)
	if err != nil {
		h.Log.Error().Err(err).Msg("products: list featured failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := h.Featured.Set(ctx, products); err != nil {
		h.Log.Warn().Err(err).Msg("products: featured cache populate failed")
	}
	return c.JSON(http.StatusOK, products)
}

// GetRecommendations returns three random products.
func (h *ProductHandler) GetRecommendations(c echo.Context) error {
	products, err := h.Products.Random(c.Request().Context(), 3)
	if err != nil {
		h.Log.Error().Err(err).Msg("products: recommendations failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, products)
}

// GetByCategory lists products in one category.
func (h *ProductHandler) GetByCategory(c echo.Context) error {
	products, err := h.Products.ListByCategory(c.Request().Context(), c.Param("category"))
	if err != nil {
		h.Log.Error().Err(err).Msg("products: list by category failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"products": products})
}

// GetShop is the filtered/sorted storefront listing. All filters are
// optional; the full matching set is returned along with the echo of
// the filters that were applied.
func (h *ProductHandler) GetShop(c echo.Context) error {
	var (
		f      repository.ListFilter
		echoed shopFilters
	)
	f.Category = c.QueryParam("category")
	f.Search = c.QueryParam("search")
	f.Sort = c.QueryParam("sort")
	if v := c.QueryParam("minPrice"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid minPrice"})
		}
		f.MinPrice = &p
	}
	if v := c.QueryParam("maxPrice"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid maxPrice"})
		}
		f.MaxPrice = &p
	}

	echoed = shopFilters{
		Category: f.Category,
		MinPrice: c.QueryParam("minPrice"),
		MaxPrice: c.QueryParam("maxPrice"),
		Sort:     f.Sort,
		Search:   f.Search,
	}
	if echoed.Category == "" {
		echoed.Category = "all"
	}
	if echoed.Sort == "" {
		echoed.Sort = "newest"
	}

	products, err := h.Products.ListFiltered(c.Request().Context(), f)
	if err != nil {
		h.Log.Error().Err(err).Msg("products: filtered list failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"products":   products,
		"totalCount": len(products),
		"filters":    echoed,
	})
}

// GetCategories returns the distinct category slugs.
func (h *ProductHandler) GetCategories(c echo.Context) error {
	categories, err := h.Products.Categories(c.Request().Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("products: categories failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, categories)
}

// GetPriceRange returns the global min/max price.
func (h *ProductHandler) GetPriceRange(c echo.Context) error {
	min, max, err := h.Products.PriceRange(c.Request().Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("products: price range failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"min": min, "max": max})
}

// Create uploads the optional image first, then persists the product
// with the hosted URL (empty string when no image was supplied).
func (h *ProductHandler) Create(c echo.Context) error {
	var req createProductReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || req.Category == "" || req.Price <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/category/price required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	imageURL := ""
	if req.Image != "" {
		url, err := h.uploadImage(ctx, req.Image)
		if err != nil {
			h.Log.Error().Err(err).Msg("products: image upload failed")
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "image upload failed"})
		}
		imageURL = url
	}

	p, err := h.Products.Create(ctx, model.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Image:       imageURL,
		Category:    req.Category,
	})
	if err != nil {
		h.Log.Error().Err(err).Msg("products: create failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create product failed"})
	}
	return c.JSON(http.StatusCreated, p)
}

// Delete removes the product row after a best-effort delete of its
// hosted image. An image-host failure is logged, never propagated:
// the row is the primary resource.
func (h *ProductHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	p, err := h.Products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		h.Log.Error().Err(err).Msg("products: load for delete failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if p.Image != "" {
		if err := h.Images.Delete(ctx, p.Image); err != nil {
			h.Log.Warn().Err(err).Uint64("product_id", id).Msg("products: image delete failed")
		}
	}

	if err := h.Products.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		h.Log.Error().Err(err).Msg("products: delete failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete product failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "product deleted successfully"})
}

// ToggleFeatured flips the flag and refreshes the featured cache
// synchronously, so the next read sees the change.
func (h *ProductHandler) ToggleFeatured(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	p, err := h.Products.ToggleFeatured(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		h.Log.Error().Err(err).Msg("products: toggle featured failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update product failed"})
	}

	featured, err := h.Products.ListFeatured(ctx)
	if err != nil {
		h.Log.Warn().Err(err).Msg("products: featured cache refresh query failed")
	} else if err := h.Featured.Set(ctx, featured); err != nil {
		h.Log.Warn().Err(err).Msg("products: featured cache refresh failed")
	}

	return c.JSON(http.StatusOK, p)
}

// uploadImage decodes a data-URL (or raw base64) payload and hands
// the bytes to the image store.
func (h *ProductHandler) uploadImage(ctx context.Context, data string) (string, error) {
	contentType := "image/jpeg"
	if strings.HasPrefix(data, "data:") {
		rest := strings.TrimPrefix(data, "data:")
		semi := strings.Index(rest, ";base64,")
		if semi < 0 {
			return "", errors.New("unsupported image encoding")
		}
		contentType = rest[:semi]
		data = rest[semi+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", err
	}
	return h.Images.Upload(ctx, bytes.NewReader(raw), int64(len(raw)), contentType)
}
