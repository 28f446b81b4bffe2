package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/spotvec/internal/gateway"
	"github.com/dshills/spotvec/internal/service"
	"github.com/dshills/spotvec/internal/spotify"
	"github.com/dshills/spotvec/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams       = -32602 // Invalid method parameters
	ErrorCodeInternalError       = -32603 // Internal JSON-RPC error
	ErrorCodeIngestionInProgress = -32002 // Another ingestion of the playlist is running
	ErrorCodeEmptyQuery          = -32004 // Query parameter is empty
	ErrorCodeConfiguration       = -32010 // Required server configuration is missing
	ErrorCodeAuth                = -32011 // Provider rejected the token request
	ErrorCodeSessionExpired      = -32012 // Re-authentication required
	ErrorCodeUpstream            = -32013 // Spotify API request failed
	ErrorCodeTimeout             = -32014 // Outbound call timed out
)

// MaxLimit caps the limit parameter of every query tool.
const MaxLimit = 100

func (s *Server) handleExchangeCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	code, err := requireString(args, "code")
	if err != nil {
		return nil, err
	}

	cred, err := s.svc.Exchange(ctx, code)
	if err != nil {
		return nil, toolError("token exchange failed", err)
	}
	return mcp.NewToolResultText(formatJSON(credentialResponse(cred))), nil
}

func (s *Server) handleRefreshToken(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	refresh, err := requireString(args, "refresh_token")
	if err != nil {
		return nil, err
	}

	cred, err := s.svc.Refresh(ctx, refresh)
	if err != nil {
		return nil, toolError("token refresh failed", err)
	}
	return mcp.NewToolResultText(formatJSON(credentialResponse(cred))), nil
}

func (s *Server) handleValidateToken(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	cred, err := credential(args)
	if err != nil {
		return nil, err
	}

	profile, err := s.svc.ValidateToken(ctx, cred)
	if err != nil {
		var expired *types.SessionExpiredError
		if errors.As(err, &expired) {
			return mcp.NewToolResultText(formatJSON(map[string]interface{}{
				"valid": false,
				"error": err.Error(),
			})), nil
		}
		return nil, toolError("token validation failed", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"valid":  profile.Valid,
		"user":   profile.DisplayName,
		"userId": profile.UserID,
	})), nil
}

func (s *Server) handleListPlaylists(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	cred, err := credential(args)
	if err != nil {
		return nil, err
	}

	playlists, err := s.svc.UserPlaylists(ctx, cred, getIntDefault(args, "limit", 0))
	if err != nil {
		return nil, toolError("failed to list playlists", err)
	}

	items := make([]map[string]interface{}, 0, len(playlists))
	for _, p := range playlists {
		items = append(items, map[string]interface{}{
			"id":          string(p.ID),
			"name":        p.Name,
			"description": p.Description,
			"owner":       p.Owner.DisplayName,
			"tracks":      p.Tracks.Total,
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"playlists": items,
		"count":     len(items),
	})), nil
}

// handleProcessPlaylist handles the process_playlist tool invocation
func (s *Server) handleProcessPlaylist(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	cred, err := credential(args)
	if err != nil {
		return nil, err
	}
	playlistID, err := requireString(args, "playlist_id")
	if err != nil {
		return nil, err
	}
	name, err := requireString(args, "playlist_name")
	if err != nil {
		return nil, err
	}

	var items []spotify.PlaylistItem
	if raw, ok := args["tracks"]; ok && raw != nil {
		if err := decodeArgument(raw, &items); err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "tracks must be an array of playlist items", map[string]interface{}{
				"param":  "tracks",
				"reason": err.Error(),
			})
		}
	}

	summary, err := s.svc.ProcessPlaylist(ctx, service.ProcessRequest{
		PlaylistID: playlistID,
		Name:       name,
		Items:      items,
		Credential: cred,
	})
	if err != nil {
		return nil, toolError("playlist processing failed", err)
	}

	response := map[string]interface{}{
		"success":        true,
		"message":        fmt.Sprintf("Processed %d of %d tracks", summary.ProcessedCount, summary.TotalCount),
		"playlistId":     summary.StoredPlaylistID,
		"processedSongs": summary.ProcessedCount,
		"totalTracks":    summary.TotalCount,
	}
	if n := len(summary.Skipped); n > 0 {
		// Include first few skipped tracks
		if n > 5 {
			response["skipped"] = summary.Skipped[:5]
			response["skipped_count"] = n
		} else {
			response["skipped"] = summary.Skipped
		}
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) handleInitStore(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.InitStore(ctx); err != nil {
		return nil, toolError("store initialization failed", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"success": true,
		"message": "Collections recreated",
	})), nil
}

// handleSearchSongs handles the search_songs tool invocation
func (s *Server) handleSearchSongs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	query, err := requireQuery(args, "query")
	if err != nil {
		return nil, err
	}
	limit, err := limitArg(args, gateway.DefaultLimit)
	if err != nil {
		return nil, err
	}

	songs, err := s.svc.SemanticSearch(ctx, query, limit)
	if err != nil {
		return nil, toolError("search failed", err)
	}
	return mcp.NewToolResultText(formatJSON(songsResponse(songs))), nil
}

func (s *Server) handleAdvancedSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	limit, err := limitArg(args, gateway.DefaultLimit)
	if err != nil {
		return nil, err
	}
	filters, _ := args["filters"].(map[string]interface{})

	songs, err := s.svc.AdvancedSearch(ctx, getStringDefault(args, "query", ""), filters, limit)
	if err != nil {
		return nil, toolError("advanced search failed", err)
	}
	return mcp.NewToolResultText(formatJSON(songsResponse(songs))), nil
}

func (s *Server) handleSimilarSongs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	songID, err := requireString(args, "song_id")
	if err != nil {
		return nil, err
	}
	limit, err := limitArg(args, gateway.DefaultNeighborLimit)
	if err != nil {
		return nil, err
	}

	songs, err := s.svc.SimilarSongs(ctx, songID, limit)
	if err != nil {
		return nil, toolError("similar songs lookup failed", err)
	}
	return mcp.NewToolResultText(formatJSON(songsResponse(songs))), nil
}

func (s *Server) handleGeneratePlaylist(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	theme, err := requireString(args, "theme")
	if err != nil {
		return nil, err
	}
	mood, err := requireString(args, "mood")
	if err != nil {
		return nil, err
	}
	limit, err := limitArg(args, gateway.DefaultGenerateLimit)
	if err != nil {
		return nil, err
	}

	playlist, err := s.svc.GeneratePlaylist(ctx, theme, mood, limit)
	if err != nil {
		return nil, toolError("playlist generation failed", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"name":        playlist.Name,
		"description": playlist.Description,
		"theme":       playlist.Theme,
		"mood":        playlist.Mood,
		"songs":       playlist.Songs,
	})), nil
}

func (s *Server) handleSearchPlaylists(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	query, err := requireQuery(args, "query")
	if err != nil {
		return nil, err
	}
	limit, err := limitArg(args, gateway.DefaultLimit)
	if err != nil {
		return nil, err
	}

	playlists, err := s.svc.SearchPlaylists(ctx, query, limit)
	if err != nil {
		return nil, toolError("playlist search failed", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"results": playlists,
		"count":   len(playlists),
	})), nil
}

func (s *Server) handlePlaylistsByMood(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	mood, err := requireString(args, "mood")
	if err != nil {
		return nil, err
	}
	limit, err := limitArg(args, gateway.DefaultLimit)
	if err != nil {
		return nil, err
	}

	playlists, err := s.svc.PlaylistsByMood(ctx, mood, limit)
	if err != nil {
		return nil, toolError("playlist lookup failed", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"results": playlists,
		"count":   len(playlists),
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.svc.Status(ctx)

	response := map[string]interface{}{
		"store": map[string]interface{}{
			"ready":     st.StoreReady,
			"songs":     st.Songs,
			"playlists": st.Playlists,
		},
		"spotify": map[string]interface{}{
			"env":            st.Spotify,
			"exchange_ready": st.ExchangeReady,
		},
		"generator_enabled": st.GeneratorEnabled,
		"timestamp":         st.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	}
	if st.CountError != "" {
		response["store"].(map[string]interface{})["error"] = st.CountError
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// toolError maps a service error onto an MCP error code by its kind.
func toolError(message string, err error) error {
	data := map[string]interface{}{
		"kind":  types.KindOf(err),
		"error": err.Error(),
	}
	code := ErrorCodeInternalError
	switch types.KindOf(err) {
	case types.KindValidation:
		code = ErrorCodeInvalidParams
		switch {
		case errors.Is(err, types.ErrIngestionInProgress):
			code = ErrorCodeIngestionInProgress
		case errors.Is(err, types.ErrEmptyQuery):
			code = ErrorCodeEmptyQuery
		}
	case types.KindConfiguration:
		code = ErrorCodeConfiguration
	case types.KindAuth:
		code = ErrorCodeAuth
	case types.KindSessionExpired:
		code = ErrorCodeSessionExpired
	case types.KindFetch, types.KindTransientFetch:
		code = ErrorCodeUpstream
	case types.KindTimeout:
		code = ErrorCodeTimeout
	}
	return newMCPError(code, message, data)
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

func requireQuery(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", newMCPError(ErrorCodeEmptyQuery, key+" parameter is required and cannot be empty", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

func limitArg(args map[string]interface{}, def int) (int, error) {
	limit := getIntDefault(args, "limit", def)
	if limit < 1 || limit > MaxLimit {
		return 0, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", MaxLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	return limit, nil
}

func credential(args map[string]interface{}) (types.AccessCredential, error) {
	token, err := requireString(args, "access_token")
	if err != nil {
		return types.AccessCredential{}, err
	}
	return types.AccessCredential{
		AccessToken:  token,
		RefreshToken: getStringDefault(args, "refresh_token", ""),
	}, nil
}

func credentialResponse(cred types.AccessCredential) map[string]interface{} {
	response := map[string]interface{}{
		"access_token": cred.AccessToken,
		"token_type":   cred.TokenType,
	}
	if cred.RefreshToken != "" {
		response["refresh_token"] = cred.RefreshToken
	}
	if !cred.Expiry.IsZero() {
		response["expiry"] = cred.Expiry.Format(time.RFC3339)
		response["expires_in"] = cred.ExpiresIn(time.Now())
	}
	return response
}

func songsResponse(songs []types.SongResult) map[string]interface{} {
	return map[string]interface{}{
		"results": songs,
		"count":   len(songs),
	}
}

// decodeArgument converts a decoded JSON argument into out.
func decodeArgument(raw interface{}, out interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
