package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/spotvec/internal/service/servicetest"
	"github.com/dshills/spotvec/pkg/types"
)

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(servicetest.New(t).Service, "test")
}

func call(t *testing.T, h handler, args map[string]interface{}) (map[string]interface{}, error) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args

	result, err := h(context.Background(), req)
	if err != nil {
		return nil, err
	}
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	var text string
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("unexpected content %T", c)
	}

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out, nil
}

func requireCode(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
	return mcpErr
}

func TestParameterValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		h    handler
		args map[string]interface{}
		code int
	}{
		{"search without query", s.handleSearchSongs, map[string]interface{}{}, ErrorCodeEmptyQuery},
		{"search with empty query", s.handleSearchSongs, map[string]interface{}{"query": ""}, ErrorCodeEmptyQuery},
		{"search limit too large", s.handleSearchSongs, map[string]interface{}{"query": "jazz", "limit": 500.0}, ErrorCodeInvalidParams},
		{"search limit zero", s.handleSearchSongs, map[string]interface{}{"query": "jazz", "limit": 0.0}, ErrorCodeInvalidParams},
		{"similar without id", s.handleSimilarSongs, map[string]interface{}{}, ErrorCodeInvalidParams},
		{"generate without mood", s.handleGeneratePlaylist, map[string]interface{}{"theme": "summer"}, ErrorCodeInvalidParams},
		{"process without token", s.handleProcessPlaylist, map[string]interface{}{"playlist_id": "p1", "playlist_name": "Mix"}, ErrorCodeInvalidParams},
		{"process without name", s.handleProcessPlaylist, map[string]interface{}{"access_token": "x", "playlist_id": "p1"}, ErrorCodeInvalidParams},
		{"process with bad tracks", s.handleProcessPlaylist, map[string]interface{}{
			"access_token": "x", "playlist_id": "p1", "playlist_name": "Mix", "tracks": "nope",
		}, ErrorCodeInvalidParams},
		{"exchange without code", s.handleExchangeCode, map[string]interface{}{}, ErrorCodeInvalidParams},
		{"advanced with bad filter", s.handleAdvancedSearch, map[string]interface{}{
			"filters": map[string]interface{}{"minEnergy": true},
		}, ErrorCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call(t, tt.h, tt.args)
			requireCode(t, err, tt.code)
		})
	}
}

func TestProcessAndQuery(t *testing.T) {
	s := newTestServer(t)

	out, err := call(t, s.handleProcessPlaylist, map[string]interface{}{
		"access_token":  servicetest.GoodToken,
		"playlist_id":   "p1",
		"playlist_name": "Evening",
	})
	require.NoError(t, err)
	assert.Equal(t, true, out["success"])
	assert.EqualValues(t, 3, out["processedSongs"])
	assert.EqualValues(t, 4, out["totalTracks"])
	assert.NotEmpty(t, out["playlistId"])

	out, err = call(t, s.handleSearchSongs, map[string]interface{}{"query": "jazz", "limit": 2.0})
	require.NoError(t, err)
	assert.EqualValues(t, 2, out["count"])
	results := out["results"].([]interface{})
	first := results[0].(map[string]interface{})
	assert.Equal(t, "Trio", first["artist"])
	songID := first["id"].(string)

	out, err = call(t, s.handleSimilarSongs, map[string]interface{}{"song_id": songID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, out["count"])
	for _, r := range out["results"].([]interface{}) {
		assert.NotEqual(t, songID, r.(map[string]interface{})["id"])
	}

	out, err = call(t, s.handleAdvancedSearch, map[string]interface{}{
		"filters": map[string]interface{}{"minEnergy": 0.8},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, out["count"])
	assert.Equal(t, "t3", out["results"].([]interface{})[0].(map[string]interface{})["spotifyId"])

	out, err = call(t, s.handleGeneratePlaylist, map[string]interface{}{"theme": "late night", "mood": "jazz"})
	require.NoError(t, err)
	assert.Equal(t, "late night jazz Mix", out["name"])
	assert.Equal(t, "A curated collection of great music.", out["description"])

	out, err = call(t, s.handlePlaylistsByMood, map[string]interface{}{"mood": "mixed"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, out["count"])

	out, err = call(t, s.handleGetStatus, nil)
	require.NoError(t, err)
	store := out["store"].(map[string]interface{})
	assert.Equal(t, true, store["ready"])
	assert.EqualValues(t, 3, store["songs"])
	assert.EqualValues(t, 1, store["playlists"])

	_, err = call(t, s.handleInitStore, nil)
	require.NoError(t, err)
	out, err = call(t, s.handleGetStatus, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, out["store"].(map[string]interface{})["songs"])
}

func TestProcessWithSuppliedTracks(t *testing.T) {
	s := newTestServer(t)

	var page map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(servicetest.PlaylistTracksJSON), &page))
	tracks := page["items"].([]interface{})[:2]

	out, err := call(t, s.handleProcessPlaylist, map[string]interface{}{
		"access_token":  servicetest.GoodToken,
		"playlist_id":   "custom",
		"playlist_name": "Two songs",
		"tracks":        tracks,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, out["processedSongs"])
	assert.EqualValues(t, 2, out["totalTracks"])
}

func TestExpiredSession(t *testing.T) {
	s := newTestServer(t)

	_, err := call(t, s.handleProcessPlaylist, map[string]interface{}{
		"access_token":  "stale",
		"playlist_id":   "p1",
		"playlist_name": "Evening",
	})
	mcpErr := requireCode(t, err, ErrorCodeSessionExpired)
	assert.Equal(t, types.KindSessionExpired, mcpErr.Data.(map[string]interface{})["kind"])

	// a refresh token renews the stale access token once
	out, err := call(t, s.handleProcessPlaylist, map[string]interface{}{
		"access_token":  "stale",
		"refresh_token": servicetest.RefreshToken,
		"playlist_id":   "p1",
		"playlist_name": "Evening",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, out["processedSongs"])

	out, err = call(t, s.handleValidateToken, map[string]interface{}{"access_token": "stale"})
	require.NoError(t, err)
	assert.Equal(t, false, out["valid"])
}

func TestTokenTools(t *testing.T) {
	s := newTestServer(t)

	out, err := call(t, s.handleExchangeCode, map[string]interface{}{"code": servicetest.GoodCode})
	require.NoError(t, err)
	assert.Equal(t, servicetest.GoodToken, out["access_token"])
	assert.Equal(t, servicetest.RefreshToken, out["refresh_token"])

	_, err = call(t, s.handleExchangeCode, map[string]interface{}{"code": "used"})
	mcpErr := requireCode(t, err, ErrorCodeAuth)
	assert.Equal(t, types.KindAuth, mcpErr.Data.(map[string]interface{})["kind"])

	out, err = call(t, s.handleRefreshToken, map[string]interface{}{"refresh_token": servicetest.RefreshToken})
	require.NoError(t, err)
	assert.Equal(t, servicetest.GoodToken, out["access_token"])

	out, err = call(t, s.handleValidateToken, map[string]interface{}{"access_token": servicetest.GoodToken})
	require.NoError(t, err)
	assert.Equal(t, true, out["valid"])
	assert.Equal(t, "Ada", out["user"])

	out, err = call(t, s.handleListPlaylists, map[string]interface{}{"access_token": servicetest.GoodToken, "limit": 1.0})
	require.NoError(t, err)
	assert.EqualValues(t, 1, out["count"])
}

func TestToolErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{types.Invalid(types.ErrMissingPlaylistID), ErrorCodeInvalidParams},
		{types.Invalid(fmt.Errorf("%w: p1", types.ErrIngestionInProgress)), ErrorCodeIngestionInProgress},
		{types.Invalid(types.ErrEmptyQuery), ErrorCodeEmptyQuery},
		{&types.ConfigurationError{Missing: []string{"SPOTIFY_CLIENT_ID"}}, ErrorCodeConfiguration},
		{&types.AuthError{Cause: types.ErrInvalidGrant}, ErrorCodeAuth},
		{&types.SessionExpiredError{}, ErrorCodeSessionExpired},
		{&types.FetchError{URL: "u", Status: 500, Err: errors.New("x")}, ErrorCodeUpstream},
		{&types.TimeoutError{Op: "page", Err: errors.New("x")}, ErrorCodeTimeout},
		{&types.StoreError{Op: "query", Err: errors.New("x")}, ErrorCodeInternalError},
		{errors.New("unknown"), ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			requireCode(t, toolError("failed", tt.err), tt.code)
		})
	}
}
