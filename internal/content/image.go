package content

import (
	"encoding/base64"
	"io"
	"os"

	"github.com/h2non/filetype"
	"github.com/pkg/errors"
)

// MaxImageSize bounds attachments read from disk.
const MaxImageSize = 5 << 20

var (
	ErrNotImage      = errors.New("file is not a supported image")
	ErrImageTooLarge = errors.New("image exceeds size limit")
)

// LoadImage reads an image file and returns it as a data URL suitable for the
// image field of a message.
func LoadImage(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open image")
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageSize+1))
	if err != nil {
		return "", errors.Wrap(err, "read image")
	}
	if len(data) > MaxImageSize {
		return "", ErrImageTooLarge
	}
	return ImageDataURL(data)
}

// ImageDataURL sniffs data and encodes it as a base64 data URL.
func ImageDataURL(data []byte) (string, error) {
	if !filetype.IsImage(data) {
		return "", ErrNotImage
	}
	kind, err := filetype.Match(data)
	if err != nil {
		return "", errors.Wrap(err, "detect image type")
	}
	return "data:" + kind.MIME.Value + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
