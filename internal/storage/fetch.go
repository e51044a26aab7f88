package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var inputExtensions = map[string]bool{".csv": true, ".xlsx": true, ".json": true}

// FetchInputs downloads every CSV, XLSX and JSON object under prefix into
// dir, flattened to base names, and returns the local paths in listing order.
func FetchInputs(ctx context.Context, store ObjectStorage, prefix, dir string) ([]string, error) {
	if dir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	objects, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, obj := range objects {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		name := path.Base(obj.Key)
		if !inputExtensions[strings.ToLower(path.Ext(name))] {
			continue
		}
		localPath := filepath.Join(dir, name)
		if err := store.DownloadObject(ctx, obj.Key, localPath); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", obj.Key, err)
		}
		localPaths = append(localPaths, localPath)
	}

	if len(localPaths) == 0 {
		return nil, fmt.Errorf("no input objects under %q", prefix)
	}
	return localPaths, nil
}
