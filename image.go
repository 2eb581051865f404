package carve

// Image is a disk image held in memory for scanning.
type Image struct {
	Path  string
	Data  []byte
	close func() error
}

func (img *Image) Close() error {
	if img.close == nil {
		return nil
	}
	return img.close()
}
