// Package embedder turns song and playlist descriptions into vectors.
//
// Four providers implement Embedder:
//
//   - jina: Jina AI embeddings API (1024 dimensions)
//   - openai: OpenAI embeddings API (1536 dimensions)
//   - gemini: Gemini embedding models through google.golang.org/genai (768 dimensions)
//   - local: offline signed feature hashing (384 dimensions)
//
// FromConfig picks a provider from the loaded configuration:
//
//  1. SPOTVEC_EMBEDDING_PROVIDER when set
//  2. otherwise the first of JINA_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY that is set
//  3. otherwise local
//
// Remote providers retry failed calls with exponential backoff and share an
// LRU cache keyed by the sha256 of the text, so re-ingesting an unchanged
// playlist does not re-embed its songs.
//
// The vector dimension is fixed per provider. A store written with one
// provider cannot be queried meaningfully with another; switching providers
// requires re-initializing the schema and re-ingesting.
package embedder
