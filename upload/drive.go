// Package upload pushes finished runs to Google Drive. Upload problems never
// fail a run; the artifacts always stay on disk.
package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"storytime-pipeline/config"
	"storytime-pipeline/types"
)

// Uploader pushes the video, thumbnail, and metadata of a run into a
// per-run Drive folder.
type Uploader struct {
	cfg *config.Config

	// newService is swappable in tests.
	newService func(ctx context.Context) (driveService, error)
}

// driveService is the slice of the Drive API the uploader needs.
type driveService interface {
	CreateFolder(name, parentID string) (id, link string, err error)
	UploadFile(localPath, name, mimeType, folderID string) (link string, err error)
}

// New creates a Drive Uploader.
func New(cfg *config.Config) *Uploader {
	u := &Uploader{cfg: cfg}
	u.newService = u.connect
	return u
}

// Run uploads the run artifacts. Any failure degrades to a local-only result;
// the caller keeps the files either way.
func (u *Uploader) Run(ctx context.Context, runID, videoFile, thumbnailFile string, metadata *types.Metadata) *types.UploadResult {
	if !u.cfg.Upload.Enabled {
		log.Info().Msg("Upload disabled, keeping artifacts local")
		return &types.UploadResult{LocalOnly: true}
	}

	svc, err := u.newService(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Drive unavailable, keeping artifacts local")
		return &types.UploadResult{LocalOnly: true}
	}

	folderName := fmt.Sprintf("story_%s_%s", time.Now().Format("20060102"), runID)
	folderID, folderLink, err := svc.CreateFolder(folderName, u.cfg.Upload.ParentFolderID)
	if err != nil {
		log.Warn().Err(err).Msg("Drive folder creation failed, keeping artifacts local")
		return &types.UploadResult{LocalOnly: true}
	}

	result := &types.UploadResult{FolderLink: folderLink}

	result.VideoLink, err = svc.UploadFile(videoFile, filepath.Base(videoFile), "video/mp4", folderID)
	if err != nil {
		log.Warn().Err(err).Str("file", videoFile).Msg("Video upload failed, keeping artifacts local")
		return &types.UploadResult{LocalOnly: true}
	}

	if thumbnailFile != "" {
		result.ThumbnailLink, err = svc.UploadFile(thumbnailFile, filepath.Base(thumbnailFile), "image/jpeg", folderID)
		if err != nil {
			log.Warn().Err(err).Str("file", thumbnailFile).Msg("Thumbnail upload failed, continuing")
		}
	}

	if metadata != nil {
		metaFile, err := u.writeMetadataFile(runID, metadata)
		if err == nil {
			result.MetadataLink, err = svc.UploadFile(metaFile, filepath.Base(metaFile), "application/json", folderID)
			os.Remove(metaFile)
		}
		if err != nil {
			log.Warn().Err(err).Msg("Metadata upload failed, continuing")
		}
	}

	log.Info().Str("folder", folderLink).Msg("Run uploaded to Drive")
	return result
}

func (u *Uploader) writeMetadataFile(runID string, metadata *types.Metadata) (string, error) {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", err
	}
	file := filepath.Join(os.TempDir(), fmt.Sprintf("%s_metadata.json", runID))
	if err := os.WriteFile(file, data, 0644); err != nil {
		return "", err
	}
	return file, nil
}

// connect authenticates with the refresh-token flow and returns a live Drive
// service.
func (u *Uploader) connect(ctx context.Context) (driveService, error) {
	clientID := os.Getenv("GOOGLE_DRIVE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_DRIVE_CLIENT_SECRET")
	refreshToken := os.Getenv("GOOGLE_DRIVE_REFRESH_TOKEN")

	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("GOOGLE_DRIVE_CLIENT_ID, GOOGLE_DRIVE_CLIENT_SECRET, or GOOGLE_DRIVE_REFRESH_TOKEN not set")
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}

	svc, err := drive.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return &liveService{svc: svc}, nil
}

type liveService struct {
	svc *drive.Service
}

func (s *liveService) CreateFolder(name, parentID string) (string, string, error) {
	folder := &drive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.folder",
	}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}
	created, err := s.svc.Files.Create(folder).Fields("id", "webViewLink").Do()
	if err != nil {
		return "", "", err
	}
	return created.Id, created.WebViewLink, nil
}

func (s *liveService) UploadFile(localPath, name, mimeType, folderID string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	meta := &drive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{folderID},
	}
	uploaded, err := s.svc.Files.Create(meta).Media(f).Fields("webViewLink").Do()
	if err != nil {
		return "", err
	}
	return uploaded.WebViewLink, nil
}
