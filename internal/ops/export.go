package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/cardbot/internal/config"
	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/resolve"
	"github.com/hpungsan/cardbot/internal/ticket"
)

// ExportVocabularyInput contains parameters for the ExportVocabulary operation.
type ExportVocabularyInput struct {
	Path       string // optional, default: <ExportsDir>/vocabulary-<timestamp>.yml
	ExportsDir string // required, the default export directory
	BoardID    string // optional, recorded in the file header
}

// ExportVocabularyOutput contains the result of the ExportVocabulary operation.
type ExportVocabularyOutput struct {
	Path       string         `json:"path"`
	Counts     map[string]int `json:"counts"`
	ExportedAt int64          `json:"exported_at"`
}

// ExportVocabulary writes the current vocabulary of every category to a
// mappings file that can be used as a static vocabulary source.
// The file is written to a temp file first and renamed into place, so an
// existing file survives a failed export.
func ExportVocabulary(ctx context.Context, p resolve.Provider, cfg *config.Config, input ExportVocabularyInput) (*ExportVocabularyOutput, error) {
	now := time.Now()

	exportPath := input.Path
	if exportPath == "" {
		if input.ExportsDir == "" {
			return nil, errors.NewInvalidRequest("path is required")
		}
		exportPath = filepath.Join(input.ExportsDir, "vocabulary-"+now.Format("2006-01-02T150405")+".yml")
	}
	if err := ValidateExportPath(exportPath, input.ExportsDir, cfg); err != nil {
		return nil, err
	}

	maps := make(map[string]resolve.Map, len(ticket.Categories))
	counts := make(map[string]int, len(ticket.Categories))
	for _, category := range ticket.Categories {
		m, err := vocabulary(ctx, p, category)
		if err != nil {
			return nil, err
		}
		maps[category] = m
		counts[category] = m.Len()
	}

	comment := "cardbot vocabulary exported " + now.UTC().Format(time.RFC3339)
	if input.BoardID != "" {
		comment += " from board " + input.BoardID
	}
	data, err := resolve.EncodeStatic(maps, comment)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink planted after validation.
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("path must not be a symlink")
	}

	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportVocabularyOutput{
		Path:       exportPath,
		Counts:     counts,
		ExportedAt: now.Unix(),
	}, nil
}
