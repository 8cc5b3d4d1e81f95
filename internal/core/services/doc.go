// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The ingestion pipeline lives in IngestService, hybrid retrieval in
// SearchService, and store maintenance in KnowledgeService and
// ReindexService.
package services
