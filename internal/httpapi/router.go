// Package httpapi is the HTTP/JSON transport for the dispatcher's
// external interface: submission, node control, licence quotas, and the
// worker callback. It follows gin's own idiomatic conventions
// (gin.Engine, gin.HandlerFunc, manual decoding in place of
// c.ShouldBindJSON to keep strict unknown-field rejection) rather than
// cklxx-elephant.ai's cmd/cobra_cli.go, which declares
// github.com/gin-gonic/gin and github.com/gin-contrib/cors in its go.mod
// but never actually imports either.
package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dispatchd/internal/dispatchloop"
	"dispatchd/internal/logging"
)

// Server wires a dispatchloop.Loop to gin's router.
type Server struct {
	Loop     *dispatchloop.Loop
	Log      logging.Logger
	Registry *prometheus.Registry
}

// NewRouter builds the gin engine with every control-API route mounted.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders:    []string{"Content-Type"},
	}))

	r.POST("/graphs/", s.handleSubmitGraph)
	r.POST("/nodes/:id/status", s.handleSetStatus)
	r.PATCH("/nodes/:id", s.handlePatchNode)
	r.POST("/pools/:name/licences/:token", s.handleSetLicenceQuota)
	r.POST("/workers/:id/callback", s.handleWorkerCallback)

	if s.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})))
	}

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			s.Log.Printf("%s %s -> %d: %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.Errors.String())
			return
		}
		s.Log.Printf("%s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}
