// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Embedder: Converts text into unit-length, fixed-dimension vectors
//   - KnowledgeStore: Item and chunk persistence
//   - Chunker: Splits normalised text into overlapping segments
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LexicalSearcher: Full-text rank signal merged into lexical scores
//   - Structurer: Best-effort rewrite of raw text before chunking
//   - TextProcessor: Pre-hash text transformations (structuring, paragraph dedupe)
//   - Normaliser: Local file extraction into RawDocuments
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
