package importer

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/ringvault/ringvault/internal/models"
	"github.com/ringvault/ringvault/internal/storage"
)

// ExportFile is one batch file written by the ring companion app.
type ExportFile struct {
	Path    string
	RelPath string
	// KindHint is the parent directory name, used as the upload type when
	// the file holds a bare record array.
	KindHint string
}

// Discover walks dir for *.json and *.json.zst files, sorted by path.
func Discover(dir string) ([]ExportFile, error) {
	var files []ExportFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".json.zst") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		hint := ""
		if parent := filepath.Dir(rel); parent != "." {
			hint = filepath.Base(parent)
		}
		files = append(files, ExportFile{Path: path, RelPath: rel, KindHint: hint})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// ReadExportFile decodes f into upload payloads. A file may hold a single
// payload object, an array of payloads, or a bare array of records whose
// type comes from f.KindHint. zstd-compressed files are detected by magic
// bytes.
func ReadExportFile(f ExportFile) ([]models.UploadPayload, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.RelPath, err)
	}
	if storage.IsZstd(data) {
		data, err = storage.Decompress(data)
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", f.RelPath, err)
		}
	}
	return ParseExport(data, f.KindHint)
}

// ParseExport decodes an export document. See ReadExportFile.
func ParseExport(data []byte, kindHint string) ([]models.UploadPayload, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	switch data[0] {
	case '{':
		var p models.UploadPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decoding payload: %w", err)
		}
		return []models.UploadPayload{p}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decoding array: %w", err)
		}
		if len(items) == 0 {
			return nil, nil
		}
		if payloads, ok := asPayloads(items); ok {
			return payloads, nil
		}
		if kindHint == "" {
			return nil, fmt.Errorf("bare record array without a type directory")
		}
		return []models.UploadPayload{{Type: kindHint, Data: data}}, nil
	default:
		return nil, fmt.Errorf("unexpected export document starting with %q", data[0])
	}
}

// asPayloads reports whether every item is an object carrying "type".
func asPayloads(items []json.RawMessage) ([]models.UploadPayload, bool) {
	out := make([]models.UploadPayload, 0, len(items))
	for _, item := range items {
		var probe struct {
			Type *string `json:"type"`
		}
		if err := json.Unmarshal(item, &probe); err != nil || probe.Type == nil {
			return nil, false
		}
		var p models.UploadPayload
		if err := json.Unmarshal(item, &p); err != nil {
			return nil, false
		}
		out = append(out, p)
	}
	return out, true
}
