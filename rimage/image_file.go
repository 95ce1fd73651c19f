package rimage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	// webp is not registered by imaging.
	_ "golang.org/x/image/webp"
)

// ReadImageFromFile decodes a png, jpeg, gif, bmp, tiff, webp or ppm file.
func ReadImageFromFile(path string) (*Image, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ppm", ".pnm":
		//nolint:gosec
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer utils.UncheckedErrorFunc(f.Close)
		img, err := ppm.Decode(f)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %q", path)
		}
		return ConvertImage(img), nil
	default:
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %q", path)
		}
		return ConvertImage(img), nil
	}
}

// WriteImageToFile encodes the image by the file extension.
func WriteImageToFile(path string, img *Image) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ppm", ".pnm":
		//nolint:gosec
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := ppm.Encode(f, img); err != nil {
			utils.UncheckedError(f.Close())
			return err
		}
		return f.Close()
	default:
		return imaging.Save(img, path)
	}
}
