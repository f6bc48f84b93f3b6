package importer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileInfo describes a CSV file waiting in the import inbox.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// Scan returns the CSV files directly inside inbox.
func Scan(inbox string) ([]FileInfo, error) {
	entries, err := os.ReadDir(inbox)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(inbox, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from the inbox to inbox/processed/.
func MarkProcessed(inbox, fileName string) (string, error) {
	return moveOut(inbox, fileName, processedDir)
}

// MarkFailed moves a file from the inbox to inbox/failed/.
func MarkFailed(inbox, fileName string) (string, error) {
	return moveOut(inbox, fileName, failedDir)
}

// moveOut returns the destination path. An existing file of the same name
// is never overwritten; a timestamp suffix is added instead.
func moveOut(inbox, fileName, sub string) (string, error) {
	src := filepath.Join(inbox, fileName)
	dstDir := filepath.Join(inbox, sub)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s dir: %w", sub, err)
	}

	dst := filepath.Join(dstDir, fileName)
	if _, err := os.Stat(dst); err == nil {
		ext := filepath.Ext(fileName)
		stem := strings.TrimSuffix(fileName, ext)
		dst = filepath.Join(dstDir, fmt.Sprintf("%s-%s%s", stem, time.Now().UTC().Format("20060102T150405.000000000"), ext))
	}

	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("moving %s to %s: %w", fileName, sub, err)
	}
	return dst, nil
}
