// Package mcp implements the Model Context Protocol (MCP) server for spotvec.
//
// The server exposes the ingestion and query operations as tools:
//   - exchange_code, refresh_token, validate_token: Spotify OAuth helpers
//   - list_playlists: List the user's playlists
//   - process_playlist: Ingest a playlist into the vector store
//   - init_store: Drop and recreate the collections
//   - search_songs, advanced_search, similar_songs: Song queries
//   - generate_playlist: Themed selection with a generated description
//   - search_playlists, playlists_by_mood: Playlist queries
//   - get_status: Store readiness and counts
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr since stdout carries the protocol.
//
// # Tool: process_playlist
//
//	Request:
//	{
//	  "name": "process_playlist",
//	  "arguments": {
//	    "access_token": "BQD...",
//	    "refresh_token": "AQB...",
//	    "playlist_id": "37i9dQZF1DXcBWIGoYBM5M",
//	    "playlist_name": "Today's Top Hits"
//	  }
//	}
//
//	Response:
//	{
//	  "success": true,
//	  "message": "Processed 48 of 50 tracks",
//	  "playlistId": "0b4c6f0e-...",
//	  "processedSongs": 48,
//	  "totalTracks": 50
//	}
//
// When tracks is omitted the playlist's tracks are fetched from Spotify.
// Tracks that cannot be enriched or stored are skipped and counted.
//
// # Tool: advanced_search
//
//	Request:
//	{
//	  "name": "advanced_search",
//	  "arguments": {
//	    "query": "",
//	    "filters": {"minEnergy": 0.8, "maxTempo": 140},
//	    "limit": 5
//	  }
//	}
//
// Filters combine as a conjunction. Without a query the matches are listed
// unranked.
//
// # Error Handling
//
// Tool failures are returned as JSON-RPC errors whose data carries the
// machine-readable kind and the detail:
//
//	{
//	  "error": {
//	    "code": -32012,
//	    "message": "playlist processing failed",
//	    "data": {"kind": "session_expired", "error": "session expired, re-authentication required"}
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (store failures)
//   - -32002: Ingestion of the playlist already in progress
//   - -32004: Query parameter is empty
//   - -32010: Server configuration missing
//   - -32011: Token request rejected
//   - -32012: Session expired
//   - -32013: Spotify request failed
//   - -32014: Timeout
package mcp
