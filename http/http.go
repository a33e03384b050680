package http

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/magnetconv/magnetconv/config"
	"github.com/magnetconv/magnetconv/torrent"
	"github.com/magnetconv/magnetconv/torrent/store"
)

// New starts the JSON API. Blocking.
func New(c Converter, ss *torrent.Stats, idx *store.Store, destDir string, cfg *config.HTTPGlobal) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger())

	api := r.Group("/api")
	{
		api.GET("/status", apiStatusHandler(ss))
		api.GET("/conversions", apiConversionsHandler(idx))
		api.POST("/convert", apiConvertHandler(c, destDir))
	}

	log.Info().Str("host", fmt.Sprintf("%s:%d", cfg.IP, cfg.Port)).Msg("starting webserver")

	if err := r.Run(fmt.Sprintf("%s:%d", cfg.IP, cfg.Port)); err != nil {
		return fmt.Errorf("error initializing server: %w", err)
	}

	return nil
}

func Logger() gin.HandlerFunc {
	l := log.Logger.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		c.Next()
		if raw != "" {
			path = path + "?" + raw
		}
		msg := c.Errors.String()
		if msg == "" {
			msg = "Request"
		}

		s := c.Writer.Status()
		switch {
		case s >= 400 && s < 500:
			l.Warn().Str("path", path).Int("status", s).Msg(msg)
		case s >= 500:
			l.Error().Str("path", path).Int("status", s).Msg(msg)
		default:
			l.Debug().Str("path", path).Int("status", s).Msg(msg)
		}
	}
}
