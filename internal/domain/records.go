package domain

// StoredText is a text document with its semantic encoding.
type StoredText struct {
	ID       int64    `json:"id"`
	Body     string   `json:"body"`
	Encoding Encoding `json:"encoding,omitempty"`
}

// StoredImage is an uploaded or fetched image with its encoding.
type StoredImage struct {
	ID          int64    `json:"id"`
	ContentType string   `json:"content_type"`
	Image       []byte   `json:"image"`
	Encoding    Encoding `json:"encoding,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// Post is a social media post with optional message and image encodings.
// Empty encodings mean the field was absent or not yet encoded.
type Post struct {
	Seq             int64    `json:"seq"`
	PostID          string   `json:"post_id"`
	PageID          string   `json:"page_id"`
	Message         string   `json:"message,omitempty"`
	MessageEncoding Encoding `json:"message_encoding,omitempty"`
	ImageEncoding   Encoding `json:"image_encoding,omitempty"`
}

// PostFilter selects posts by page or post id. Empty lists match everything.
type PostFilter struct {
	PageIDs []string
	PostIDs []string
}

// Resource is a downloaded remote file.
type Resource struct {
	Data        []byte
	ContentType string
}
