package post

import (
	"encoding/json"
	"fmt"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

// postDTO is the stored JSON value. The sequence number lives in the sorted
// set score, not in the value, because it is assigned after the NX write.
type postDTO struct {
	PostID          string `json:"postId"`
	PageID          string `json:"pageId"`
	Message         string `json:"message,omitempty"`
	MessageEncoding []byte `json:"messageEncoding,omitempty"`
	ImageEncoding   []byte `json:"imageEncoding,omitempty"`
}

func marshalPost(p domain.Post) ([]byte, error) {
	data, err := json.Marshal(postDTO{
		PostID:          p.PostID,
		PageID:          p.PageID,
		Message:         p.Message,
		MessageEncoding: p.MessageEncoding,
		ImageEncoding:   p.ImageEncoding,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal post %s: %w", p.PostID, err)
	}
	return data, nil
}

func unmarshalPost(data []byte, seq int64) (domain.Post, error) {
	var dto postDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return domain.Post{}, fmt.Errorf("unmarshal post: %w", err)
	}
	return domain.Post{
		Seq:             seq,
		PostID:          dto.PostID,
		PageID:          dto.PageID,
		Message:         dto.Message,
		MessageEncoding: dto.MessageEncoding,
		ImageEncoding:   dto.ImageEncoding,
	}, nil
}
