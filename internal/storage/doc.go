// Package storage is the vector-indexed document store behind the gateway.
//
// Documents are stored as JSON objects grouped into collections. A
// collection declares which text properties are embedded when an object is
// written (VectorizeFields) and which property identifies an object across
// writes (KeyProperty). Writing an object whose key already exists in the
// collection updates it in place and returns the existing id.
//
// # Queries
//
// Query supports the four shapes the gateway needs:
//
//	// near-text: rank by similarity to an embedded concept
//	hits, err := store.Query(ctx, storage.Query{Class: "Song", NearText: []string{"calm piano"}, Limit: 10})
//
//	// near-object: rank by similarity to a stored object's vector
//	hits, err := store.Query(ctx, storage.Query{Class: "Song", NearObject: id, Limit: 6})
//
//	// filtered, optionally combined with near-text
//	where := storage.And(storage.GreaterThanEqual([]string{"audioFeatures", "energy"}, 0.8))
//	hits, err := store.Query(ctx, storage.Query{Class: "Song", Where: where, Limit: 5})
//
//	// plain listing in insertion order
//	hits, err := store.Query(ctx, storage.Query{Class: "Playlist", Limit: 20})
//
// Ranked hits carry a certainty in [0,1], (1 + cosine similarity) / 2.
// Objects without a vector (no text in their vectorize fields) never appear
// in ranked results.
//
// # Build modes
//
// The default build uses modernc.org/sqlite and ranks in Go. Building with
// the sqlite_vec tag switches to mattn/go-sqlite3 and ranks in SQL with
// vec_distance_cosine.
//
// # Schema
//
// Migrations are versioned with semver and recorded in schema_version:
//
//	collections(name, description, key_property, vectorize_fields)
//	objects(id, class, external_key, properties, vector, dimension, embedder, created_at, updated_at)
//
// objects has UNIQUE(class, external_key); objects without a key are never
// de-duplicated.
package storage
