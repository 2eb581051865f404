//go:build !unix

package carve

import "os"

// OpenImage reads path into memory.
func OpenImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Image{Path: path, Data: data}, nil
}
