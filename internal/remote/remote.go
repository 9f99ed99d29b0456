package remote

import (
	"context"
	"fmt"
	"path"

	"github.com/torfstack/chksum/internal/logging"
	"google.golang.org/api/drive/v3"
)

const (
	FolderMimeType   = "application/vnd.google-apps.folder"
	ShortcutMimeType = "application/vnd.google-apps.shortcut"
	RootFolderId     = "root"

	NumWorkers = 4

	listFields = "nextPageToken, files(id, name, mimeType, size, md5Checksum, sha256Checksum, driveId)"
)

// Lister returns one page of the non-trashed children of a Drive folder.
type Lister interface {
	List(ctx context.Context, folderID, pageToken string) ([]*drive.File, string, error)
}

// RemoteFile is a Drive file with the checksums Drive computed for it.
// Path is slash separated and relative to the walked folder.
type RemoteFile struct {
	ID     string
	Path   string
	Size   int64
	MD5    string
	SHA256 string
}

func (f RemoteFile) HasChecksum() bool {
	return f.MD5 != "" || f.SHA256 != ""
}

type driveLister struct {
	drv *drive.Service
}

func NewDriveLister(drv *drive.Service) Lister {
	return &driveLister{drv}
}

func (d *driveLister) List(ctx context.Context, folderID, pageToken string) ([]*drive.File, string, error) {
	req := d.drv.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed=false", folderID)).
		Fields(listFields).
		PageSize(1000).
		Context(ctx)

	if pageToken != "" {
		req = req.PageToken(pageToken)
	}

	r, err := req.Do()
	if err != nil {
		return nil, "", fmt.Errorf("error listing files in folder %s: %w", folderID, err)
	}
	return r.Files, r.NextPageToken, nil
}

// Walk lists every file below folderID. Shortcuts and shared drive items are
// skipped; following shortcuts could loop.
func Walk(ctx context.Context, lister Lister, folderID string) ([]RemoteFile, error) {
	var files []RemoteFile
	visited := map[string]bool{}
	err := walkFolder(ctx, lister, folderID, "", visited, &files)
	if err != nil {
		return nil, err
	}
	return files, nil
}

func walkFolder(
	ctx context.Context,
	lister Lister,
	folderID, dir string,
	visited map[string]bool,
	files *[]RemoteFile,
) error {
	if visited[folderID] {
		return nil
	}
	visited[folderID] = true

	pageToken := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, next, err := lister.List(ctx, folderID, pageToken)
		if err != nil {
			return err
		}

		for _, f := range page {
			if f.DriveId != "" {
				continue
			}
			p := path.Join(dir, f.Name)
			switch f.MimeType {
			case FolderMimeType:
				if err = walkFolder(ctx, lister, f.Id, p, visited, files); err != nil {
					return fmt.Errorf("error walking folder %s: %w", p, err)
				}
			case ShortcutMimeType:
				logging.Debugf("Skipping shortcut %s", p)
			default:
				*files = append(*files, RemoteFile{
					ID:     f.Id,
					Path:   p,
					Size:   f.Size,
					MD5:    f.Md5Checksum,
					SHA256: f.Sha256Checksum,
				})
			}
		}

		pageToken = next
		if pageToken == "" {
			return nil
		}
	}
}
