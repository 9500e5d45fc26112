package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sampleflow/sampleflow/internal/samples/entity"
)

// ProductHandler serves the static marketing catalog.
type ProductHandler struct{}

func NewProductHandler() *ProductHandler {
	return &ProductHandler{}
}

// List handles GET /api/v1/products
func (h *ProductHandler) List(c *gin.Context) {
	Success(c, ListResponse{
		Items: entity.Catalog,
		Total: len(entity.Catalog),
	})
}

// Get handles GET /api/v1/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	id := c.Param("id")
	product := entity.FindProduct(id)
	if product == nil {
		NotFound(c, "Product not found: "+id)
		return
	}
	Success(c, product)
}
