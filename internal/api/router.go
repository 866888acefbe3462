// api/router.go
package api

import (
	"github.com/gin-gonic/gin"
)

func BuildRouter(a *API) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/collections", a.listCollections)
	r.POST("/collections", a.createCollection)

	r.GET("/fields", a.listAllFields)

	guarded := r.Group("/fields/:collection", a.collectionExists())
	{
		guarded.GET("", a.listFields)
		guarded.POST("", a.createField)
		guarded.PATCH("", a.updateFields)
		guarded.GET("/:field", a.getField)
		guarded.PATCH("/:field", a.updateField)
		guarded.DELETE("/:field", a.deleteField)
		guarded.POST("/:field/index", a.createIndex)
		guarded.DELETE("/:field/index", a.dropIndex)
	}

	r.POST("/files", a.uploadFile)
	r.GET("/files/:id/download", a.downloadFile)

	return r
}

func RunServer(addr string, a *API) error {
	return BuildRouter(a).Run(addr)
}
