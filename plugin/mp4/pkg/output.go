package mp4

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	carve "github.com/simsong/bulk-extractor-sub001"
	"github.com/simsong/bulk-extractor-sub001/pkg"
)

// OutputName is <name>-p<path>-<base>-<offset>-<random>.<name>.
func OutputName(name string, frag *carve.Fragment) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s-p%s-%d-%d-%s.%s", name, frag.SanitizedPath(), frag.BaseOffset, frag.Offset, suffix, name)
}

// writeOutput stores data under dir. The file only appears under its final
// name once it is completely written.
func writeOutput(dir, name string, data []byte) (path string, err error) {
	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", pkg.ErrOutput, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	_, err = tmp.Write(data)
	if err = errors.Join(err, tmp.Close()); err != nil {
		return "", fmt.Errorf("%w: %w", pkg.ErrOutput, err)
	}
	path = filepath.Join(dir, name)
	if err = os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("%w: %w", pkg.ErrOutput, err)
	}
	return path, nil
}
