package invitations

import (
	"github.com/skip2/go-qrcode"
	apperr "projecthub/internal/pkg/errors"
)

const defaultQRSize = 512

// GenerateQRCode renders content as a PNG of size x size pixels.
func GenerateQRCode(content string, size int) ([]byte, error) {
	if size == 0 {
		size = defaultQRSize
	}
	if size < 128 || size > 2048 {
		return nil, apperr.Validation("invalid size: must be between 128 and 2048")
	}

	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	qr.DisableBorder = false

	return qr.PNG(size)
}
