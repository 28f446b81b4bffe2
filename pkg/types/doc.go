// Package types provides shared type definitions for spotvec.
//
// Documents stored in the vector store:
//
//   - Song: one enriched track, keyed by its provider track id
//   - Playlist: one ingested playlist, keyed by its provider playlist id
//
// AccessCredential is the caller-owned OAuth session passed into the
// ingestion pipeline. The pipeline renews it at most once per call and
// never persists it.
//
// # Errors
//
// Every failure crossing the service boundary belongs to a small taxonomy,
// each type reporting a machine-readable Kind:
//
//	ConfigurationError   missing client credentials, fatal
//	AuthError            token exchange or refresh rejected by the provider
//	SessionExpiredError  401 persisted after one renewal
//	TransientFetchError  single item failed, logged and skipped
//	FetchError           a page request failed, fatal for that request
//	StoreError           vector store operation failed
//	TimeoutError         an outbound call exceeded its deadline
//	ValidationError      caller input missing or invalid
//
// Use KindOf to obtain the kind of an arbitrary error:
//
//	if types.KindOf(err) == types.KindSessionExpired {
//	    // ask the user to log in again
//	}
package types
