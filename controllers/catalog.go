package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"AkuChat/pkg/catalog"
)

// validationFailed mirrors the error body of the demo API.
func validationFailed(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

type CatalogHandler struct {
	Store *catalog.Store
}

func (h *CatalogHandler) ListUsers(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.Users())
}

func (h *CatalogHandler) CreateUser(c *gin.Context) {
	var in catalog.CreateUser
	if err := c.ShouldBindJSON(&in); err != nil {
		validationFailed(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.Store.CreateUser(in))
}

func (h *CatalogHandler) GetUser(c *gin.Context) {
	u, err := h.Store.User(c.Param("id"))
	if err != nil {
		notFound(c, "User")
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *CatalogHandler) UpdateUser(c *gin.Context) {
	var in catalog.UpdateUser
	if err := c.ShouldBindJSON(&in); err != nil {
		validationFailed(c, err)
		return
	}
	u, err := h.Store.UpdateUser(c.Param("id"), in)
	if errors.Is(err, catalog.ErrNotFound) {
		notFound(c, "User")
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *CatalogHandler) DeleteUser(c *gin.Context) {
	if err := h.Store.DeleteUser(c.Param("id")); err != nil {
		notFound(c, "User")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User deleted"})
}

func (h *CatalogHandler) ListProducts(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.Products())
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var in catalog.CreateProduct
	if err := c.ShouldBindJSON(&in); err != nil {
		validationFailed(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.Store.CreateProduct(in))
}

func (h *CatalogHandler) GetProduct(c *gin.Context) {
	p, err := h.Store.Product(c.Param("id"))
	if err != nil {
		notFound(c, "Product")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	var in catalog.UpdateProduct
	if err := c.ShouldBindJSON(&in); err != nil {
		validationFailed(c, err)
		return
	}
	p, err := h.Store.UpdateProduct(c.Param("id"), in)
	if errors.Is(err, catalog.ErrNotFound) {
		notFound(c, "Product")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	if err := h.Store.DeleteProduct(c.Param("id")); err != nil {
		notFound(c, "Product")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product deleted"})
}
