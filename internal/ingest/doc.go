// Package ingest processes one playlist end to end: it fetches the track
// list when none is supplied, enriches each track with audio features, maps
// it to a Song document and stores it, then stores a Playlist document
// whose song count is the number of songs actually written.
//
// Processing is sequential within a call. Failures on a single track are
// logged and counted as skipped; an expired session or a failed playlist
// write fails the whole call. Concurrent calls for the same playlist id are
// rejected while one is running.
package ingest
