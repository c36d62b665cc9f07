package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/strata/internal/config"
	"github.com/agenthands/strata/internal/core"
	"github.com/agenthands/strata/internal/core/ingest"
	"github.com/agenthands/strata/internal/core/model"
	"github.com/agenthands/strata/internal/core/search"
	"github.com/agenthands/strata/internal/logger"
)

type Server struct {
	Graph *core.Graph
}

func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	g, err := core.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Server{Graph: g}, nil
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", s.Health)
	r.POST("/episodes", s.AddEpisode)
	r.POST("/episodes/bulk", s.AddEpisodeBulk)
	r.POST("/search", s.Search)
	r.POST("/communities/build", s.BuildCommunities)
	r.POST("/indices/build", s.BuildIndices)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type EpisodeRequest struct {
	GroupID           string                 `json:"group_id" binding:"required"`
	Name              string                 `json:"name"`
	Content           string                 `json:"content" binding:"required"`
	Source            string                 `json:"source"`
	SourceDescription string                 `json:"source_description"`
	ReferenceTime     *time.Time             `json:"reference_time"`
	Mode              string                 `json:"mode"`
	Schema            model.EntityTypeSchema `json:"schema"`
	PreviousEpisodes  int                    `json:"previous_episodes"`
}

func (r *EpisodeRequest) input() ingest.EpisodeInput {
	ref := time.Now().UTC()
	if r.ReferenceTime != nil {
		ref = r.ReferenceTime.UTC()
	}
	return ingest.EpisodeInput{
		GroupID:           r.GroupID,
		Name:              r.Name,
		Content:           r.Content,
		Source:            r.Source,
		SourceDescription: r.SourceDescription,
		ReferenceTime:     ref,
	}
}

func (r *EpisodeRequest) options() ingest.Options {
	return ingest.Options{
		Mode:             ingest.BuildMode(r.Mode),
		Schema:           r.Schema,
		PreviousEpisodes: r.PreviousEpisodes,
	}
}

func (s *Server) AddEpisode(c *gin.Context) {
	var req EpisodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.Graph.AddEpisode(c.Request.Context(), req.input(), req.options())
	if err != nil {
		logger.Get().Error("episode ingestion failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process episode"})
		return
	}

	c.JSON(http.StatusOK, result)
}

type BulkEpisodeRequest struct {
	GroupID          string                 `json:"group_id" binding:"required"`
	Episodes         []EpisodeRequest       `json:"episodes" binding:"required"`
	Mode             string                 `json:"mode"`
	Schema           model.EntityTypeSchema `json:"schema"`
	PreviousEpisodes int                    `json:"previous_episodes"`
}

func (s *Server) AddEpisodeBulk(c *gin.Context) {
	var req BulkEpisodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inputs := make([]ingest.EpisodeInput, len(req.Episodes))
	for i, ep := range req.Episodes {
		if ep.GroupID == "" {
			ep.GroupID = req.GroupID
		}
		inputs[i] = ep.input()
	}
	opts := ingest.Options{
		Mode:             ingest.BuildMode(req.Mode),
		Schema:           req.Schema,
		PreviousEpisodes: req.PreviousEpisodes,
	}

	statuses := s.Graph.AddEpisodeBulk(c.Request.Context(), inputs, opts)

	failed := 0
	for _, st := range statuses {
		if st.Err != nil {
			failed++
		}
	}
	status := http.StatusOK
	if failed == len(statuses) && len(statuses) > 0 {
		status = http.StatusInternalServerError
	} else if failed > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{"episodes": statuses, "failed": failed})
}

type SearchRequest struct {
	GroupID        string   `json:"group_id" binding:"required"`
	Query          string   `json:"query" binding:"required"`
	Scopes         []string `json:"scopes"`
	Methods        []string `json:"methods"`
	Reranker       string   `json:"reranker"`
	Limit          int      `json:"limit"`
	BFSOrigins     []string `json:"bfs_origins"`
	CenterNodeUUID string   `json:"center_node_uuid"`
	IncludeInvalid bool     `json:"include_invalid"`
}

func (s *Server) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := search.Config{
		Reranker:       search.Reranker(req.Reranker),
		Limit:          req.Limit,
		BFSOrigins:     req.BFSOrigins,
		CenterNodeUUID: req.CenterNodeUUID,
		IncludeInvalid: req.IncludeInvalid,
	}
	for _, sc := range req.Scopes {
		cfg.Scopes = append(cfg.Scopes, search.Scope(sc))
	}
	for _, m := range req.Methods {
		cfg.Methods = append(cfg.Methods, search.Method(m))
	}

	results, err := s.Graph.Search(c.Request.Context(), req.GroupID, req.Query, cfg)
	if err != nil {
		logger.Get().Error("search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results":              results.Items,
		"contributing_signals": results.ContributingSignals,
		"truncated":            results.Truncated,
	})
}

type BuildCommunitiesRequest struct {
	GroupID string `json:"group_id" binding:"required"`
}

func (s *Server) BuildCommunities(c *gin.Context) {
	var req BuildCommunitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	communities, err := s.Graph.BuildCommunities(c.Request.Context(), req.GroupID)
	if err != nil {
		logger.Get().Error("community build failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build communities"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"communities": communities})
}

func (s *Server) BuildIndices(c *gin.Context) {
	if err := s.Graph.BuildIndices(c.Request.Context()); err != nil {
		logger.Get().Error("index build failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build indices"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
