// Package normalisers turns local files into raw documents for ingestion.
//
// Each format package (html, markdown, plaintext) implements the Normaliser
// interface for a set of MIME types. The Registry dispatches a file to the
// highest priority normaliser for its detected MIME type, and the
// FileExtractor reads files from disk, rejects binary content and runs the
// registry.
package normalisers
