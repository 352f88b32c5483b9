package models

import "time"

type FileType string

const (
	FileTypeJD           FileType = "jd"
	FileTypeResume       FileType = "resume"
	FileTypeConversation FileType = "conversation"
	FileTypeReport       FileType = "report"
)

// Valid reports whether t is on the upload allow-list.
func (t FileType) Valid() bool {
	switch t {
	case FileTypeJD, FileTypeResume, FileTypeConversation, FileTypeReport:
		return true
	}
	return false
}

// Well-known UploadedFile metadata keys.
const (
	MetaCandidateName = "candidateName"
	MetaPosition      = "position"
	MetaJD            = "jd"
	MetaResume        = "resume"
	MetaJDFileID      = "jdFileId"
	MetaResumeFileID  = "resumeFileId"
	MetaStoragePath   = "storagePath"
	MetaMimeType      = "mimeType"
	MetaStage         = "stage"
	MetaPrevSummary   = "previousSummary"
)

type UploadedFile struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       FileType          `json:"type"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	UploadedAt time.Time         `json:"uploadedAt"`
	Size       int64             `json:"size"`
}

// FileSelection narrows a stored file set. Zero-valued fields do not
// constrain the selection.
type FileSelection struct {
	IDs            []string   `json:"ids,omitempty"`
	Type           FileType   `json:"type,omitempty"`
	NameContains   string     `json:"nameContains,omitempty"`
	UploadedAfter  *time.Time `json:"uploadedAfter,omitempty"`
	UploadedBefore *time.Time `json:"uploadedBefore,omitempty"`
}
