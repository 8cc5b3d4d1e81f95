// Package domain defines the core business entities for kcache.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawDocument: Extracted text handed to ingestion exactly once
//   - KnowledgeItem: A saved unit of content, unique per content hash
//   - Chunk: An embedded, searchable segment of a KnowledgeItem
//   - RetrievalResult / SearchOutcome: Ranked search output or a reindex signal
//   - Settings: Engine limits, chunking and scoring configuration
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
