package catalog

import (
	"github.com/gin-gonic/gin"

	"AkuChat/controllers"
)

// Register mounts the demo users and products API under /api.
func Register(r *gin.Engine, h *controllers.CatalogHandler) {
	api := r.Group("/api")
	api.GET("/users", h.ListUsers)
	api.POST("/users", h.CreateUser)
	api.GET("/users/:id", h.GetUser)
	api.PATCH("/users/:id", h.UpdateUser)
	api.DELETE("/users/:id", h.DeleteUser)

	api.GET("/products", h.ListProducts)
	api.POST("/products", h.CreateProduct)
	api.GET("/products/:id", h.GetProduct)
	api.PATCH("/products/:id", h.UpdateProduct)
	api.DELETE("/products/:id", h.DeleteProduct)
}
