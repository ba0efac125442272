package types

// Story holds the generated narrative and its per-scene illustrations.
type Story struct {
	Title      string   `json:"title"`
	RawText    string   `json:"raw_text"`
	Segments   []string `json:"segments"`
	ImageFiles []string `json:"image_files"`
	PromptText string   `json:"prompt_text"`
}

// Metadata holds the SEO record uploaded alongside the video.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	Fallback    bool     `json:"fallback,omitempty"`
}

// UploadResult carries the shareable links returned by Drive, or marks the
// artifacts as retained locally when the upload failed.
type UploadResult struct {
	VideoLink     string `json:"video_link,omitempty"`
	ThumbnailLink string `json:"thumbnail_link,omitempty"`
	MetadataLink  string `json:"metadata_link,omitempty"`
	FolderLink    string `json:"folder_link,omitempty"`
	LocalOnly     bool   `json:"local_only"`
}

// RunState tracks the full state of one pipeline run.
type RunState struct {
	RunID       string        `json:"run_id"`
	StartedAt   string        `json:"started_at"`
	CompletedAt string        `json:"completed_at"`
	PromptText  string        `json:"prompt_text,omitempty"`
	Story       *Story        `json:"story,omitempty"`
	AudioFile   string        `json:"audio_file,omitempty"`
	VideoFile   string        `json:"video_file,omitempty"`
	Metadata    *Metadata     `json:"metadata,omitempty"`
	Upload      *UploadResult `json:"upload,omitempty"`
	Error       string        `json:"error,omitempty"`
}
