package uploader

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/rasha-hantash/confluence-mirror/steps/types"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	pathProperty   = "mirror_path"
)

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// DriveSink mirrors objects into a Google Drive folder named after the container.
// The object path is kept in an app property so re-uploads update the same file.
type DriveSink struct {
	driveService *drive.Service
	folderName   string
	folderID     string
}

// NewDriveSink creates a Drive-backed sink using application default credentials.
func NewDriveSink(ctx context.Context, projectID string, folderName string) (*DriveSink, error) {
	opts := []option.ClientOption{}
	if projectID != "" {
		opts = append(opts, option.WithQuotaProject(projectID))
	}

	drv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating Drive service: %w", err)
	}
	return newDriveSink(drv, folderName), nil
}

func newDriveSink(drv *drive.Service, folderName string) *DriveSink {
	return &DriveSink{driveService: drv, folderName: folderName}
}

// EnsureContainer finds the folder by name or creates it.
func (d *DriveSink) EnsureContainer(ctx context.Context) error {
	q := fmt.Sprintf("mimeType='%s' and name='%s' and trashed=false",
		folderMimeType, queryEscaper.Replace(d.folderName))

	r, err := d.driveService.Files.List().Q(q).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return &StorageError{Backend: BackendDrive, Op: "search folder", Path: d.folderName, Err: err}
	}

	if len(r.Files) > 0 {
		d.folderID = r.Files[0].Id
		slog.Info("found existing drive folder",
			slog.String("name", d.folderName),
			slog.String("id", d.folderID))
		return nil
	}

	f := &drive.File{
		Name:     d.folderName,
		MimeType: folderMimeType,
	}
	created, err := d.driveService.Files.Create(f).Fields("id").Context(ctx).Do()
	if err != nil {
		return &StorageError{Backend: BackendDrive, Op: "create folder", Path: d.folderName, Err: err}
	}

	d.folderID = created.Id
	slog.Info("created drive folder",
		slog.String("name", d.folderName),
		slog.String("id", created.Id))
	return nil
}

// Upload creates the file on first sight of a path and updates it afterwards.
func (d *DriveSink) Upload(ctx context.Context, obj types.StorageObject) error {
	if d.folderID == "" {
		if err := d.EnsureContainer(ctx); err != nil {
			return err
		}
	}

	props := map[string]string{pathProperty: obj.Path}
	for k, v := range obj.Metadata {
		props[k] = v
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(obj.Path)))
	}

	existingID, err := d.findByPath(ctx, obj.Path)
	if err != nil {
		return &StorageError{Backend: BackendDrive, Op: "search", Path: obj.Path, Err: err}
	}

	media := bytes.NewReader(obj.Content)
	if existingID != "" {
		_, err = d.driveService.Files.Update(existingID, &drive.File{
			Name:          obj.Path,
			AppProperties: props,
		}).
			Media(media, googleapi.ContentType(contentType)).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		if err != nil {
			return &StorageError{Backend: BackendDrive, Op: "update", Path: obj.Path, Err: err}
		}
		slog.Debug("updated drive file", slog.String("path", obj.Path), slog.String("id", existingID))
		return nil
	}

	resp, err := d.driveService.Files.Create(&drive.File{
		Name:          obj.Path,
		MimeType:      contentType,
		Parents:       []string{d.folderID},
		AppProperties: props,
	}).
		Media(media, googleapi.ContentType(contentType)).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return &StorageError{Backend: BackendDrive, Op: "create", Path: obj.Path, Err: err}
	}

	slog.Debug("created drive file", slog.String("path", obj.Path), slog.String("id", resp.Id))
	return nil
}

func (d *DriveSink) findByPath(ctx context.Context, path string) (string, error) {
	q := fmt.Sprintf("appProperties has { key='%s' and value='%s' } and '%s' in parents and trashed=false",
		pathProperty, queryEscaper.Replace(path), d.folderID)

	r, err := d.driveService.Files.List().Q(q).Fields("files(id)").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(r.Files) == 0 {
		return "", nil
	}
	return r.Files[0].Id, nil
}
