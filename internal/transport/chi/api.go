package chi

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// ErrorCode is a machine-readable error category.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeUnauthorized           ErrorCode = "unauthorized"
	ErrorCodeNotFound               ErrorCode = "not_found"
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodeEncodingFailed         ErrorCode = "encoding_failed"
	ErrorCodeFetchFailed            ErrorCode = "fetch_failed"
	ErrorCodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	ErrorCodeOverloaded             ErrorCode = "overloaded"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// StringList accepts either a single JSON string or an array of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	}
	var ss []string
	if err := json.Unmarshal(data, &ss); err != nil {
		return err
	}
	*l = ss
	return nil
}

// SearchTextRequest is the body of POST /search-text.
type SearchTextRequest struct {
	Text      string  `json:"text"`
	TopK      *int    `json:"topk,omitempty"`
	Threshold float64 `json:"threshold"`
	Mode      string  `json:"mode,omitempty"`
}

// SearchTextParams are the optional query parameters of POST /search-text.
type SearchTextParams struct {
	TopK *int `form:"topk,omitempty"`
}

// Occurrence is one matching window of a document.
type Occurrence struct {
	Similarity float64 `json:"similarity"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Word       string  `json:"word"`
}

// TextResult is one ranked stored text.
type TextResult struct {
	ID          int64        `json:"id"`
	Similarity  float64      `json:"similarity"`
	Text        string       `json:"text"`
	Occurrences []Occurrence `json:"occurrences"`
}

// AddTextRequest is the body of POST /add-text.
type AddTextRequest struct {
	Text StringList `json:"text"`
}

// AddImagesRequest is the JSON body of POST /images.
type AddImagesRequest struct {
	URLs StringList `json:"urls"`
}

// JobAccepted is returned by the asynchronous ingestion endpoints.
type JobAccepted struct {
	JobID string `json:"job_id"`
	Items int    `json:"items"`
}

// SearchImageRequest is the JSON body of POST /search-image.
type SearchImageRequest struct {
	URL       string  `json:"url,omitempty"`
	ID        *int64  `json:"id,omitempty"`
	TopK      *int    `json:"topk,omitempty"`
	Threshold float64 `json:"threshold"`
}

// SearchImageParams are the query parameters used with a raw image body.
type SearchImageParams struct {
	TopK      *int     `form:"topk,omitempty"`
	Threshold *float64 `form:"threshold,omitempty"`
}

// ImageResult is one ranked stored image.
type ImageResult struct {
	ID          int64   `json:"id"`
	Similarity  float64 `json:"similarity"`
	ContentType string  `json:"content_type"`
	Source      string  `json:"source,omitempty"`
	URL         string  `json:"url"`
}

// Attachment is the media attached to a post. Thumbnail is an image URL.
type Attachment struct {
	MediaType string `json:"media_type,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Post is a post as submitted for encoding.
type Post struct {
	PostID     string      `json:"post_id"`
	PageID     string      `json:"page_id"`
	Message    string      `json:"message,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// PostList accepts {"posts": [...]}, a bare array of posts or a single post.
type PostList []Post

var errNoPosts = errors.New("expected a post, an array of posts or an object with a posts field")

// UnmarshalJSON implements json.Unmarshaler.
func (l *PostList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errNoPosts
	}
	if data[0] == '[' {
		var posts []Post
		if err := json.Unmarshal(data, &posts); err != nil {
			return err
		}
		*l = posts
		return nil
	}

	var probe struct {
		Posts  *[]Post `json:"posts"`
		PostID *string `json:"post_id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch {
	case probe.Posts != nil:
		*l = *probe.Posts
	case probe.PostID != nil:
		var p Post
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*l = PostList{p}
	default:
		return errNoPosts
	}
	return nil
}

// SearchPostRequest is the body of POST /search-post.
type SearchPostRequest struct {
	Post      Post     `json:"post"`
	TopK      *int     `json:"topk,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	PageIDs   []string `json:"page_ids,omitempty"`
}

// PostResult is one ranked post.
type PostResult struct {
	Similarity        float64 `json:"similarity"`
	MessageSimilarity float64 `json:"message_similarity"`
	ImageSimilarity   float64 `json:"image_similarity"`
	Message           string  `json:"message"`
	PostID            string  `json:"post_id"`
	PageID            string  `json:"page_id"`
}

// JobItem is the outcome of one submitted item.
type JobItem struct {
	Index  int    `json:"index"`
	ID     *int64 `json:"id,omitempty"`
	Key    string `json:"key,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// JobResponse is the body of GET /jobs/{id}.
type JobResponse struct {
	JobID       string     `json:"job_id"`
	Kind        string     `json:"kind"`
	State       string     `json:"state"`
	SubmittedAt time.Time  `json:"submitted_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Stored      int        `json:"stored"`
	Skipped     int        `json:"skipped"`
	Failed      int        `json:"failed"`
	Items       []JobItem  `json:"items"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
