package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dshills/spotvec/internal/gateway"
	"github.com/dshills/spotvec/internal/service"
	"github.com/dshills/spotvec/internal/spotify"
	"github.com/dshills/spotvec/pkg/types"
)

type codeRequest struct {
	Code string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type processRequest struct {
	PlaylistID   string                 `json:"playlistId"`
	PlaylistName string                 `json:"playlistName"`
	Tracks       []spotify.PlaylistItem `json:"tracks"`
	RefreshToken string                 `json:"refreshToken"`
}

type searchRequest struct {
	Query   string                 `json:"query"`
	Filters map[string]interface{} `json:"filters"`
	Limit   int                    `json:"limit"`
}

type generateRequest struct {
	Theme string `json:"theme"`
	Mood  string `json:"mood"`
	Limit int    `json:"limit"`
}

// bearer extracts the access token from the Authorization header.
func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func noToken(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"kind":  types.KindValidation,
		"error": "No token provided",
	})
}

func credentialJSON(cred types.AccessCredential) gin.H {
	body := gin.H{
		"access_token":  cred.AccessToken,
		"accessToken":   cred.AccessToken,
		"refresh_token": cred.RefreshToken,
		"refreshToken":  cred.RefreshToken,
		"token_type":    cred.TokenType,
		"scope":         strings.Join(cred.Scope, " "),
	}
	if !cred.Expiry.IsZero() {
		body["expires_in"] = cred.ExpiresIn(time.Now())
	}
	return body
}

func (s *Server) handleAuthorize(c *gin.Context) {
	c.Redirect(http.StatusFound, s.svc.AuthURL(uuid.NewString()))
}

func (s *Server) handleExchange(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		badRequest(c, "Authorization code is required")
		return
	}

	cred, err := s.svc.Exchange(c.Request.Context(), req.Code)
	if err != nil {
		writeError(c, "Authentication failed", err)
		return
	}
	c.JSON(http.StatusOK, credentialJSON(cred))
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		badRequest(c, "Refresh token is required")
		return
	}

	cred, err := s.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, "Failed to refresh token", err)
		return
	}
	c.JSON(http.StatusOK, credentialJSON(cred))
}

func (s *Server) handleTestToken(c *gin.Context) {
	token := bearer(c)
	if token == "" {
		noToken(c)
		return
	}

	profile, err := s.svc.ValidateToken(c.Request.Context(), types.AccessCredential{AccessToken: token})
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"valid": false,
			"kind":  types.KindOf(err),
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleUserPlaylists(c *gin.Context) {
	token := bearer(c)
	if token == "" {
		noToken(c)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	playlists, err := s.svc.UserPlaylists(c.Request.Context(), types.AccessCredential{AccessToken: token}, limit)
	if err != nil {
		writeError(c, "Failed to list playlists", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"playlists": playlists,
		"count":     len(playlists),
	})
}

func (s *Server) handleInitStore(c *gin.Context) {
	if err := s.svc.InitStore(c.Request.Context()); err != nil {
		writeError(c, "Failed to initialize store", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Store initialized successfully."})
}

func (s *Server) handleProcessPlaylist(c *gin.Context) {
	token := bearer(c)
	if token == "" {
		noToken(c)
		return
	}
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlaylistID == "" || req.PlaylistName == "" {
		badRequest(c, "Incomplete playlist data provided")
		return
	}

	summary, err := s.svc.ProcessPlaylist(c.Request.Context(), service.ProcessRequest{
		PlaylistID: req.PlaylistID,
		Name:       req.PlaylistName,
		Items:      req.Tracks,
		Credential: types.AccessCredential{AccessToken: token, RefreshToken: req.RefreshToken},
	})
	if err != nil {
		writeError(c, "Failed to process playlist", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Successfully processed " + strconv.Itoa(summary.ProcessedCount) + " songs",
		"playlistId":     summary.StoredPlaylistID,
		"processedSongs": summary.ProcessedCount,
		"totalTracks":    summary.TotalCount,
		"skipped":        summary.Skipped,
	})
}

func (s *Server) handleSearchSongs(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	songs, err := s.svc.SemanticSearch(c.Request.Context(), req.Query, defaultInt(req.Limit, gateway.DefaultLimit))
	if err != nil {
		writeError(c, "Failed to search songs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": songs,
		"query":   req.Query,
		"count":   len(songs),
	})
}

func (s *Server) handleAdvancedSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if req.Filters == nil {
		req.Filters = map[string]interface{}{}
	}

	songs, err := s.svc.AdvancedSearch(c.Request.Context(), req.Query, req.Filters, defaultInt(req.Limit, gateway.DefaultLimit))
	if err != nil {
		writeError(c, "Failed to perform advanced search", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": songs,
		"query":   req.Query,
		"filters": req.Filters,
		"count":   len(songs),
	})
}

func (s *Server) handleSimilarSongs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(gateway.DefaultNeighborLimit)))
	if err != nil || limit < 1 {
		badRequest(c, "limit must be a positive integer")
		return
	}

	songs, err := s.svc.SimilarSongs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, "Failed to fetch similar songs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"similarSongs": songs,
		"count":        len(songs),
	})
}

func (s *Server) handleGeneratePlaylist(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	playlist, err := s.svc.GeneratePlaylist(c.Request.Context(), req.Theme, req.Mood, defaultInt(req.Limit, gateway.DefaultGenerateLimit))
	if err != nil {
		writeError(c, "Failed to generate playlist description", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"description": playlist,
	})
}

func (s *Server) handleSearchPlaylists(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	playlists, err := s.svc.SearchPlaylists(c.Request.Context(), req.Query, defaultInt(req.Limit, gateway.DefaultLimit))
	if err != nil {
		writeError(c, "Failed to search playlists", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": playlists,
		"query":   req.Query,
		"count":   len(playlists),
	})
}

func (s *Server) handlePlaylistsByMood(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	playlists, err := s.svc.PlaylistsByMood(c.Request.Context(), c.Param("mood"), defaultInt(limit, gateway.DefaultLimit))
	if err != nil {
		writeError(c, "Failed to fetch playlists", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": playlists,
		"count":   len(playlists),
	})
}

func (s *Server) handleStoreHealth(c *gin.Context) {
	state := "not ready"
	if s.svc.StoreHealth(c.Request.Context()) {
		state = "ready"
	}
	c.JSON(http.StatusOK, gin.H{
		"store":     state,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	env := gin.H{"PORT": s.port}
	for k, v := range s.svc.EnvStatus() {
		env[k] = v
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "Server is running!",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": env,
	})
}

func (s *Server) handleDebugEnv(c *gin.Context) {
	env := s.svc.EnvStatus()
	redirect := env["SPOTIFY_REDIRECT_URI"]
	if redirect == "MISSING" {
		redirect = ""
	}
	c.JSON(http.StatusOK, gin.H{
		"clientIdSet":       env["SPOTIFY_CLIENT_ID"] == "SET",
		"clientSecretSet":   env["SPOTIFY_CLIENT_SECRET"] == "SET",
		"redirectUri":       redirect,
		"allEnvVarsPresent": env["SPOTIFY_CLIENT_ID"] == "SET" && env["SPOTIFY_CLIENT_SECRET"] == "SET" && redirect != "",
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Status(c.Request.Context()))
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
