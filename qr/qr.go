// Package qr renders the QR artifact that points at a published form.
package qr

import (
	"github.com/skip2/go-qrcode"
)

const size = 256

// PublicURL is the address a form is answered at.
func PublicURL(siteURL, slug string) string {
	return siteURL + "/s/" + slug + "/"
}

// Encode renders content as a PNG QR code.
func Encode(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, size)
}
