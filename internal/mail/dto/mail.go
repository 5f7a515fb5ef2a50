package dto

import (
	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/usecase"
)

type ProvidersResponse struct {
	Providers []usecase.ProviderStatus `json:"providers"`
}

type SyncAllResponse struct {
	Reports []usecase.CycleReport `json:"reports"`
}

type ThreadResponse struct {
	Thread   *domain.StoredThread   `json:"thread"`
	Messages []domain.StoredMessage `json:"messages"`
}

type UpdateTagsRequest struct {
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

type TagsResponse struct {
	ID   string             `json:"id"`
	Tags domain.StringArray `json:"tags"`
}

// ResubscribeRequest carries the restart cursor for providers without a watch.
type ResubscribeRequest struct {
	Cursor string `json:"cursor"`
}

type PushResponse struct {
	Status string `json:"status"`
}
