package utils

import (
	"encoding/base64"
	"errors"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

var ErrEmptyImage = errors.New("empty image payload")

// DecodeImage accepts either a data URI ("data:image/png;base64,...") or a
// bare base64 string as sent by the Pix provider.
func DecodeImage(encoded string) ([]byte, string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, "", ErrEmptyImage
	}

	contentType := "image/png"
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", errors.New("malformed data uri")
		}
		if mime, _, _ := strings.Cut(meta, ";"); mime != "" {
			contentType = mime
		}
		encoded = payload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	return data, contentType, nil
}

// RenderQRCode draws a PNG QR code for a Pix copy-and-paste code.
func RenderQRCode(code string) ([]byte, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyImage
	}
	return qrcode.Encode(code, qrcode.Medium, qrSize)
}
