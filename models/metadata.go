package models

// Metadata status values.
const (
	MetadataStatusSuccess = "success"
	MetadataStatusError   = "error"
)

// MetadataRequest is the payload for POST /api/v1/metadata.
type MetadataRequest struct {
	// URL is the page whose title and meta description are scraped. Required.
	URL string `json:"url" binding:"required,url"`

	// MaxAge is the maximum acceptable cache age in milliseconds.
	// 0 uses the server default; -1 bypasses the cache.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=-1"`
}

// MetadataResponse mirrors the scrape_url_metadata tool envelope: a status
// field instead of an HTTP error so agents can read failures as data.
type MetadataResponse struct {
	Status          string `json:"status"`
	URL             string `json:"url"`
	Title           string `json:"title,omitempty"`
	MetaDescription string `json:"metadescription,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	EngineUsed      string `json:"engine_used,omitempty"`
	CacheStatus     string `json:"cache_status,omitempty"`
}

// MetadataError builds an error envelope for url.
func MetadataError(url string, err error) *MetadataResponse {
	return &MetadataResponse{
		Status:       MetadataStatusError,
		URL:          url,
		ErrorMessage: err.Error(),
	}
}
