package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func limitProp(def int) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Maximum number of results to return (1-100)",
		"default":     def,
		"minimum":     1,
		"maximum":     100,
	}
}

// credentialProps are accepted by every tool that calls the Spotify API.
// A refresh token lets the call renew an expired access token once.
func credentialProps(props map[string]interface{}) map[string]interface{} {
	props["access_token"] = stringProp("Spotify access token")
	props["refresh_token"] = stringProp("Optional refresh token used to renew an expired access token")
	return props
}

// exchangeCodeTool returns the tool definition for exchange_code
func exchangeCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "exchange_code",
		Description: "Exchange a Spotify authorization code for access and refresh tokens",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code": stringProp("Authorization code from the Spotify redirect"),
			},
			Required: []string{"code"},
		},
	}
}

// refreshTokenTool returns the tool definition for refresh_token
func refreshTokenTool() mcp.Tool {
	return mcp.Tool{
		Name:        "refresh_token",
		Description: "Obtain a new Spotify access token from a refresh token",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"refresh_token": stringProp("Refresh token from a previous exchange"),
			},
			Required: []string{"refresh_token"},
		},
	}
}

func validateTokenTool() mcp.Tool {
	return mcp.Tool{
		Name:        "validate_token",
		Description: "Check a Spotify access token and return the user it belongs to",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: credentialProps(map[string]interface{}{}),
			Required:   []string{"access_token"},
		},
	}
}

func listPlaylistsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_playlists",
		Description: "List the current user's Spotify playlists",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: credentialProps(map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of playlists (defaults to the configured cap)",
					"minimum":     1,
				},
			}),
			Required: []string{"access_token"},
		},
	}
}

// processPlaylistTool returns the tool definition for process_playlist
func processPlaylistTool() mcp.Tool {
	return mcp.Tool{
		Name:        "process_playlist",
		Description: "Fetch, enrich with audio features and store every track of a playlist, then store the playlist itself",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: credentialProps(map[string]interface{}{
				"playlist_id":   stringProp("Spotify playlist id"),
				"playlist_name": stringProp("Playlist display name"),
				"tracks": map[string]interface{}{
					"type":        "array",
					"description": "Optional playlist items as returned by the Spotify playlist tracks endpoint; fetched when omitted",
					"items":       map[string]interface{}{"type": "object"},
				},
			}),
			Required: []string{"access_token", "playlist_id", "playlist_name"},
		},
	}
}

func initStoreTool() mcp.Tool {
	return mcp.Tool{
		Name:        "init_store",
		Description: "Drop and recreate the song and playlist collections. Deletes all stored data.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// searchSongsTool returns the tool definition for search_songs
func searchSongsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_songs",
		Description: "Search stored songs with a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": stringProp("Search query, e.g. 'mellow late night jazz'"),
				"limit": limitProp(10),
			},
			Required: []string{"query"},
		},
	}
}

// advancedSearchTool returns the tool definition for advanced_search
func advancedSearchTool() mcp.Tool {
	bound := func(description string) map[string]interface{} {
		return map[string]interface{}{"type": "number", "description": description}
	}
	return mcp.Tool{
		Name:        "advanced_search",
		Description: "Filter stored songs by audio feature ranges, optionally ranked by a text query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": stringProp("Optional search query"),
				"limit": limitProp(10),
				"filters": map[string]interface{}{
					"type":        "object",
					"description": "Inclusive audio feature bounds",
					"properties": map[string]interface{}{
						"minAcousticness":     bound("Minimum acousticness (0.0-1.0)"),
						"maxAcousticness":     bound("Maximum acousticness (0.0-1.0)"),
						"minDanceability":     bound("Minimum danceability (0.0-1.0)"),
						"maxDanceability":     bound("Maximum danceability (0.0-1.0)"),
						"minEnergy":           bound("Minimum energy (0.0-1.0)"),
						"maxEnergy":           bound("Maximum energy (0.0-1.0)"),
						"minInstrumentalness": bound("Minimum instrumentalness (0.0-1.0)"),
						"maxInstrumentalness": bound("Maximum instrumentalness (0.0-1.0)"),
						"minTempo":            bound("Minimum tempo in BPM"),
						"maxTempo":            bound("Maximum tempo in BPM"),
						"minValence":          bound("Minimum valence (0.0-1.0)"),
						"maxValence":          bound("Maximum valence (0.0-1.0)"),
					},
				},
			},
		},
	}
}

func similarSongsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "similar_songs",
		Description: "Find stored songs most similar to a stored song",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"song_id": stringProp("Store id of the song (the id field of a search result)"),
				"limit":   limitProp(5),
			},
			Required: []string{"song_id"},
		},
	}
}

func generatePlaylistTool() mcp.Tool {
	return mcp.Tool{
		Name:        "generate_playlist",
		Description: "Select songs for a theme and mood and describe the selection in one sentence",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"theme": stringProp("Playlist theme, e.g. 'road trip'"),
				"mood":  stringProp("Playlist mood, e.g. 'upbeat'"),
				"limit": limitProp(20),
			},
			Required: []string{"theme", "mood"},
		},
	}
}

func searchPlaylistsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_playlists",
		Description: "Search stored playlists with a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": stringProp("Search query"),
				"limit": limitProp(10),
			},
			Required: []string{"query"},
		},
	}
}

func playlistsByMoodTool() mcp.Tool {
	return mcp.Tool{
		Name:        "playlists_by_mood",
		Description: "List stored playlists with an exact mood",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"mood":  stringProp("Mood to match"),
				"limit": limitProp(10),
			},
			Required: []string{"mood"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report store readiness, stored song and playlist counts, and which Spotify settings are configured",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
