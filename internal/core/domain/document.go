package domain

import "time"

type DocumentStatus string

const (
	StatusPending   DocumentStatus = "pending"
	StatusAnalyzing DocumentStatus = "analyzing"
	StatusCompleted DocumentStatus = "completed"
	StatusFailed    DocumentStatus = "failed"
)

type Document struct {
	ID               string           `json:"id"`
	Filename         string           `json:"filename"`
	OriginalFilename string           `json:"original_filename"`
	StoragePath      string           `json:"storage_path"`
	RemoteHandle     string           `json:"remote_handle,omitempty"`
	Status           DocumentStatus   `json:"status"`
	Result           *AnalysisResult  `json:"result,omitempty"`
	ValidationFlags  []ValidationFlag `json:"validation_flags,omitempty"`
	ProjectID        string           `json:"project_id,omitempty"`
	UploaderID       string           `json:"uploader_id,omitempty"`
	PageCount        int              `json:"page_count,omitempty"`
	Error            string           `json:"error,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// RemoteFile is a resolved reference to an uploaded file on the analysis
// provider, usable as a content part in a conversation.
type RemoteFile struct {
	Handle   string `json:"handle"`
	URI      string `json:"uri"`
	MimeType string `json:"mime_type"`
}

// ValidationFlag records a mismatch between a document's extracted metadata
// and the project it was uploaded under.
type ValidationFlag struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// UploadOutcome reports the result of a synchronous upload-and-analyze call.
// Existing is set when the upload was deduplicated against a prior document
// with the same original filename.
type UploadOutcome struct {
	Document      *Document `json:"document"`
	Analyzed      bool      `json:"analyzed"`
	Existing      bool      `json:"existing"`
	AnalysisError string    `json:"analysis_error,omitempty"`
}
