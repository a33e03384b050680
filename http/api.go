package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/magnetconv/magnetconv/torrent"
	"github.com/magnetconv/magnetconv/torrent/store"
)

// Converter is the conversion surface the API exposes. Satisfied by
// *torrent.Service.
type Converter interface {
	Convert(ctx context.Context, magnetURI, destDir string) (*torrent.Result, error)
}

var apiStatusHandler = func(ss *torrent.Stats) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"conversionStats": ss.Global(),
		})
	}
}

var apiConversionsHandler = func(idx *store.Store) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if idx == nil {
			ctx.JSON(http.StatusOK, []*store.Conversion{})
			return
		}

		list, err := idx.ListConverted()
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, Error{Error: err.Error()})
			return
		}
		if list == nil {
			list = []*store.Conversion{}
		}
		ctx.JSON(http.StatusOK, list)
	}
}

var apiConvertHandler = func(c Converter, destDir string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req ConvertRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, Error{Error: err.Error()})
			return
		}

		res, err := c.Convert(ctx.Request.Context(), req.Magnet, destDir)
		if err != nil {
			ctx.JSON(http.StatusBadGateway, Error{Error: err.Error()})
			return
		}

		ctx.JSON(http.StatusOK, gin.H{
			"path":    res.Path,
			"summary": res.Summary,
		})
	}
}
