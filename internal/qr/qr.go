// Package qr resolves gateway QR responses into a displayable image.
// The gateway may return a pre-rendered image, a raw KHQR payload, or
// both; callers downstream of the boundary only ever see PNG bytes.
package qr

import (
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

const renderSize = 512

var ErrEmpty = errors.New("empty qr artifact")

// Artifact is a tagged variant: either a rendered image or a raw payload
// that still needs local rendering.
type Artifact struct {
	rendered []byte
	payload  string
}

func Rendered(png []byte) Artifact { return Artifact{rendered: png} }

func Payload(data string) Artifact { return Artifact{payload: data} }

func (a Artifact) Empty() bool { return len(a.rendered) == 0 && a.payload == "" }

// Resolve returns PNG bytes, rendering the raw payload locally when the
// gateway did not ship an image.
func (a Artifact) Resolve() ([]byte, error) {
	if len(a.rendered) > 0 {
		return a.rendered, nil
	}
	if a.payload != "" {
		return qrcode.Encode(a.payload, qrcode.Medium, renderSize)
	}
	return nil, ErrEmpty
}
