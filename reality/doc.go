// Package reality captures chat turns as "reality" records and decides
// whether a new turn starts a new reality or continues a known one.
//
// A reality is one user utterance together with the coarse attributes
// extracted from it and its embedding. Realities are stored in a vector
// store, namespaced by owner ID, and the nearest stored neighbour of each new
// turn drives novelty detection.
//
// Architecture:
//   - Store: vector storage backend (chromem-go embedded DB, or SQLite)
//   - Embedder: text-to-vector conversion (ONNX MiniLM locally, mock in tests)
//   - Analyzer: text-to-attributes classification (keyword tables by default)
//   - Tracker: single-nearest-neighbour novelty decision
//   - Responder: emotional tag to canned reply
//   - Memory: glues Embedder and Store together for the engine
//
// Per-turn flow (driven by package engine):
//
//	text -> Analyzer -> attributes
//	text -> Embedder -> vector -> Store.QueryNearest(owner) -> neighbours
//	neighbours -> Tracker -> is new?
//	Store.Insert(owner, text, vector, attributes)
//	attributes -> Responder -> reply
//
// Analyzer, Tracker and Responder are total: they never fail. Storage and
// embedding failures surface as *StorageError and *EmbeddingError and are
// never swallowed here.
package reality
