package services

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// LabelService renders the QR stickers attached to returnable bottles.
type LabelService struct {
	size int
}

func NewLabelService(size int) *LabelService {
	if size <= 0 {
		size = 256
	}
	return &LabelService{size: size}
}

// NewCode returns a fresh bottle code such as "BSP_4F1A09C2".
func (s *LabelService) NewCode(prefix string) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "BSP"
	}
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "_" + strings.ToUpper(id[:8])
}

// Render encodes code as a base64 PNG QR image.
func (s *LabelService) Render(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", newError(KindValidation, "label code must not be empty")
	}

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(s.size)); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
