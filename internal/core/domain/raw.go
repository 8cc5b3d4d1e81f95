package domain

// RawDocument is text produced by an extractor (page capture, pasted note,
// local file normaliser). It is consumed once by ingestion and never stored.
type RawDocument struct {
	// Title is the human-readable title, may be empty.
	Title string

	// Body is the extracted text.
	Body string

	// SourceOrigin is where the text came from (URL, file path).
	// Empty for pasted notes.
	SourceOrigin string
}

// SourceFile is a local file handed to a normaliser.
type SourceFile struct {
	// Path is the file location; it becomes the item's source origin.
	Path string

	// MIMEType selects the normaliser.
	MIMEType string

	// Content is the file bytes.
	Content []byte
}
