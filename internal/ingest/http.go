package ingest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DevJihwan/kimcady-refactored/internal/correlator"
	"github.com/DevJihwan/kimcady-refactored/internal/engine"
	"github.com/DevJihwan/kimcady-refactored/internal/events"
)

// Server is the HTTP ingest surface: the capture layer may deliver decoded
// events by webhook instead of (or in addition to) the message queue.
type Server struct {
	eng  *engine.Engine
	corr *correlator.Correlator
}

func NewServer(eng *engine.Engine, corr *correlator.Correlator) *Server {
	return &Server{eng: eng, corr: corr}
}

func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	v1 := r.Group("/events")
	{
		v1.POST("/confirmation", s.confirmation)
		v1.POST("/snapshot", s.snapshot)
		v1.POST("/customer", s.customer)
		v1.POST("/revenue", s.revenue)
	}
	return r
}

func (s *Server) confirmation(c *gin.Context) {
	var ev events.Confirmation
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.eng.HandleConfirmation(c.Request.Context(), ev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

func (s *Server) snapshot(c *gin.Context) {
	var ev events.Snapshot
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.eng.HandleSnapshot(c.Request.Context(), ev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

func (s *Server) customer(c *gin.Context) {
	var ev events.Customer
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.corr.Observe(ev)
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

func (s *Server) revenue(c *gin.Context) {
	var ev events.Revenue
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.eng.HandleRevenue(c.Request.Context(), ev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}
