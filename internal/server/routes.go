package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/danmuck/torrentctl/internal/bencode"
	"github.com/danmuck/torrentctl/internal/metainfo"
	"github.com/danmuck/torrentctl/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sugawarayuuta/sonnet"
	"github.com/vmihailenco/msgpack/v5"
)

var ErrUnknownFormat = errors.New("server: unknown output format")

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": "torrentctl",
			"version": version,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  time.Since(s.appeared).String(),
			"service": "torrentctl",
			"version": version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes := s.protected()
	routes.POST("/decode", s.handleDecode)
	routes.POST("/metainfo", s.handleMetainfo)
	routes.POST("/infohash", s.handleInfoHash)
}

func (s *Server) handleDecode(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}
	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "msgpack" {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrUnknownFormat.Error(), "format": format})
		return
	}

	start := time.Now()
	var tree any
	err := bencode.Unmarshal(body, &tree)
	observability.RecordDecode("generic", len(body), time.Since(start), err)
	if err != nil {
		writeDecodeError(c, err)
		return
	}

	var out []byte
	contentType := "application/json; charset=utf-8"
	if format == "msgpack" {
		contentType = "application/msgpack"
		out, err = msgpack.Marshal(tree)
	} else {
		out, err = sonnet.Marshal(tree)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, contentType, out)
}

func (s *Server) handleMetainfo(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}
	t, err := metainfo.ParseWith(body, metainfo.Options{
		DisallowUnknownFields: s.decode.DisallowUnknownFields,
	})
	if err != nil {
		writeDecodeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.Summary())
}

func (s *Server) handleInfoHash(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}
	hash, err := metainfo.ComputeInfoHash(body)
	if err != nil {
		writeDecodeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"info_hash": hash.String()})
}

func (s *Server) readBody(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large", "limit": tooLarge.Limit})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty request body"})
		return nil, false
	}
	return body, true
}

// writeDecodeError reports malformed input as 422 with the failing offset
// when the decoder supplied one.
func writeDecodeError(c *gin.Context, err error) {
	resp := gin.H{"error": err.Error()}
	var berr *bencode.Error
	if errors.As(err, &berr) {
		resp["kind"] = berr.Kind.String()
		resp["offset"] = berr.Offset
	}
	c.JSON(http.StatusUnprocessableEntity, resp)
}
