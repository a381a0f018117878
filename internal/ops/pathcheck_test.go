package ops

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hpungsan/cardbot/internal/config"
	"github.com/hpungsan/cardbot/internal/errors"
)

func TestValidateExportPath_TraversalRejected(t *testing.T) {
	exportsDir := t.TempDir()
	cfg := config.DefaultConfig()

	tests := []struct {
		name string
		path string
	}{
		{"parent traversal", "../vocab.yml"},
		{"deep traversal", "../../etc/vocab.yml"},
		{"mid-path traversal", exportsDir + "/../vocab.yml"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateExportPath(tc.path, exportsDir, cfg)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got: %v", err)
			}
		})
	}
}

func TestValidateExportPath_ExtensionRequired(t *testing.T) {
	exportsDir := t.TempDir()
	cfg := config.DefaultConfig()

	for _, name := range []string{"vocab", "vocab.json", "vocab.yml.txt"} {
		err := ValidateExportPath(filepath.Join(exportsDir, name), exportsDir, cfg)
		if !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("%s: expected ErrInvalidRequest, got: %v", name, err)
		}
	}
	for _, name := range []string{"vocab.yml", "vocab.yaml"} {
		if err := ValidateExportPath(filepath.Join(exportsDir, name), exportsDir, cfg); err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
		}
	}
}

func TestValidateExportPath_DirectoryRestriction(t *testing.T) {
	exportsDir := t.TempDir()
	other := t.TempDir()
	cfg := config.DefaultConfig()

	if err := ValidateExportPath(filepath.Join(other, "vocab.yml"), exportsDir, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("outside allowed dirs: expected ErrInvalidRequest, got: %v", err)
	}
	if err := ValidateExportPath(filepath.Join(exportsDir, "sub", "vocab.yml"), exportsDir, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("subdirectory: expected ErrInvalidRequest, got: %v", err)
	}

	cfg.AllowedPaths = []string{other}
	if err := ValidateExportPath(filepath.Join(other, "vocab.yml"), exportsDir, cfg); err != nil {
		t.Errorf("allowed path: unexpected error: %v", err)
	}

	cfg.AllowedPaths = nil
	cfg.AllowUnsafePaths = true
	if err := ValidateExportPath(filepath.Join(other, "nested", "vocab.yml"), exportsDir, cfg); err != nil {
		t.Errorf("unsafe paths: unexpected error: %v", err)
	}
}

func TestValidateExportPath_SymlinkRejected(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	exportsDir := t.TempDir()
	target := filepath.Join(t.TempDir(), "target.yml")
	if err := os.WriteFile(target, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(exportsDir, "link.yml")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	if err := ValidateExportPath(link, exportsDir, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for symlink, got: %v", err)
	}
	cfg.AllowUnsafePaths = true
	if err := ValidateExportPath(link, exportsDir, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for symlink with unsafe paths, got: %v", err)
	}
}

func TestValidateExportPath_Empty(t *testing.T) {
	if err := ValidateExportPath("", t.TempDir(), nil); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
}
