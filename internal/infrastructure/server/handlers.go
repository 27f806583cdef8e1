package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/vatomsync/internal/domain/datapool"
	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/domain/regions/children"
	"github.com/GriffinCanCode/vatomsync/internal/domain/regions/geopos"
	"github.com/GriffinCanCode/vatomsync/internal/domain/regions/vatoms"
	"github.com/GriffinCanCode/vatomsync/internal/domain/session"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

func (s *Server) health(c *gin.Context) {
	push := gin.H{"enabled": s.opts.Connected != nil}
	if s.opts.Connected != nil {
		push["connected"] = s.opts.Connected()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"regions": len(s.pool.Regions()),
		"push":    push,
	})
}

func (s *Server) listRegions(c *gin.Context) {
	regions := s.pool.Regions()
	out := make([]region.Status, 0, len(regions))
	for _, r := range regions {
		out = append(out, r.Status())
	}
	c.JSON(http.StatusOK, gin.H{
		"regions": out,
		"count":   len(out),
	})
}

// getRegion opens (or reuses) the region and returns its objects. With
// ?sync=true it synchronizes first.
func (s *Server) getRegion(c *gin.Context) {
	r, ok := s.resolve(c)
	if !ok {
		return
	}

	if sync, _ := strconv.ParseBool(c.Query("sync")); sync {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.SyncTimeout)
		defer cancel()
		if err := r.Synchronize(ctx); err != nil {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"region":  r.Status(),
		"objects": r.GetAll(),
	})
}

func (s *Server) syncRegion(c *gin.Context) {
	r, ok := s.resolve(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.SyncTimeout)
	defer cancel()
	if err := r.ForceSynchronize(ctx); err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	}

	st := r.Status()
	code := http.StatusOK
	if st.Error != "" {
		code = http.StatusBadGateway
	}
	s.logger.Info("Forced region sync",
		zap.String("state_key", st.StateKey),
		zap.Int("objects", st.Objects),
		zap.String("error", st.Error),
	)
	c.JSON(code, gin.H{"region": st})
}

// resolve writes the error response itself when it returns false
func (s *Server) resolve(c *gin.Context) (*region.Region, bool) {
	kind := c.Param("kind")
	descriptor, err := descriptorFor(kind, c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	r, err := s.pool.Region(kind, descriptor)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return nil, false
	}
	return r, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, datapool.ErrUnknownKind):
		return http.StatusNotFound
	case errors.Is(err, datapool.ErrBadDescriptor):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoSession):
		return http.StatusConflict
	case errors.Is(err, datapool.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func descriptorFor(kind string, c *gin.Context) (any, error) {
	switch kind {
	case vatoms.Kind:
		var ids []string
		for _, v := range c.QueryArray("id") {
			ids = append(ids, strings.Split(v, ",")...)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("at least one id is required")
		}
		return ids, nil
	case children.Kind:
		return c.Query("parent"), nil
	case geopos.Kind:
		return ParseBoundingBox(c.Query("bbox"))
	}
	if d := c.Query("descriptor"); d != "" {
		return d, nil
	}
	return nil, nil
}

// ParseBoundingBox reads "minLat,minLon,maxLat,maxLon"
func ParseBoundingBox(s string) (types.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.BoundingBox{}, fmt.Errorf("bbox must be minLat,minLon,maxLat,maxLon")
	}
	var n [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return types.BoundingBox{}, fmt.Errorf("bbox value %q: %w", p, err)
		}
		n[i] = f
	}
	box := types.BoundingBox{
		BottomLeft: types.Coordinate{Lat: n[0], Lon: n[1]},
		TopRight:   types.Coordinate{Lat: n[2], Lon: n[3]},
	}
	return box, box.Validate()
}
