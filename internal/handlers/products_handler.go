package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fulfill-service/internal/events"
	"fulfill-service/internal/models"
	"fulfill-service/internal/repository"
)

type ProductsHandler struct {
	repo   *repository.ProductsRepository
	events events.EventSink
}

func NewProductsHandler(repo *repository.ProductsRepository, sink events.EventSink) *ProductsHandler {
	return &ProductsHandler{
		repo:   repo,
		events: sink,
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	})
}

// CreateProduct creates a new product
// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Param product body models.CreateProductRequest true "Product"
// @Success 201 {object} models.Product
// @Router /products [post]
func (h *ProductsHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	product := &models.Product{
		Name:        req.Name,
		SKU:         req.SKU,
		Description: req.Description,
		Active:      true,
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	if err := h.repo.CreateProduct(c.Request.Context(), product); err != nil {
		if errors.Is(err, repository.ErrDuplicateSKU) {
			respondError(c, http.StatusConflict, "DUPLICATE_SKU", "A product with this SKU already exists")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create product")
		return
	}

	h.events.Publish(context.Background(), models.EventProductCreated, product)

	c.JSON(http.StatusCreated, product)
}

// GetProduct retrieves a product by ID
// @Summary Get product
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} models.Product
// @Router /products/{id} [get]
func (h *ProductsHandler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID")
		return
	}

	product, err := h.repo.GetProductByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get product")
		return
	}

	c.JSON(http.StatusOK, product)
}

// ListProducts lists products with optional filters and pagination
// @Summary List products
// @Tags products
// @Produce json
// @Param sku query string false "Filter by SKU substring"
// @Param name query string false "Filter by name substring"
// @Param active query bool false "Filter by active flag"
// @Success 200 {object} models.ProductListResponse
// @Router /products [get]
func (h *ProductsHandler) ListProducts(c *gin.Context) {
	var q models.ListProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}

	products, total, err := h.repo.ListProducts(c.Request.Context(), &q)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list products")
		return
	}

	totalPages := int(total) / q.Limit
	if int(total)%q.Limit > 0 {
		totalPages++
	}

	c.JSON(http.StatusOK, models.ProductListResponse{
		Success:  true,
		Products: products,
		Pagination: models.Pagination{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// UpdateProduct partially updates a product
// @Summary Update product
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param product body models.UpdateProductRequest true "Fields to update"
// @Success 200 {object} models.Product
// @Router /products/{id} [patch]
func (h *ProductsHandler) UpdateProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID")
		return
	}

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.SKU != nil {
		sku := models.NormalizeSKU(*req.SKU)
		existing, err := h.repo.GetProductBySKU(c.Request.Context(), sku)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update product")
			return
		}
		if existing != nil && existing.ID != id {
			respondError(c, http.StatusConflict, "DUPLICATE_SKU", "A product with this SKU already exists")
			return
		}
		updates["sku"] = sku
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if len(updates) == 0 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "No fields to update")
		return
	}

	product, err := h.repo.UpdateProduct(c.Request.Context(), id, updates)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update product")
		return
	}

	h.events.Publish(context.Background(), models.EventProductUpdated, product)

	c.JSON(http.StatusOK, product)
}

// DeleteProduct deletes a single product
// @Summary Delete product
// @Tags products
// @Param id path string true "Product ID"
// @Success 204
// @Router /products/{id} [delete]
func (h *ProductsHandler) DeleteProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID")
		return
	}

	product, err := h.repo.GetProductByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete product")
		return
	}

	if err := h.repo.DeleteProduct(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete product")
		return
	}

	h.events.Publish(context.Background(), models.EventProductDeleted, product)

	c.Status(http.StatusNoContent)
}

// DeleteAllProducts removes every product and reports the count. One
// aggregate product.deleted event carries the count instead of one event
// per row.
// @Summary Delete all products
// @Tags products
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /products [delete]
func (h *ProductsHandler) DeleteAllProducts(c *gin.Context) {
	count, err := h.repo.DeleteAllProducts(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete products")
		return
	}

	h.events.Publish(context.Background(), models.EventProductDeleted, gin.H{"count": count})

	c.JSON(http.StatusOK, gin.H{
		"message": "All products deleted",
		"deleted": count,
	})
}
