package email

import (
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// QRPNG renders a ticket code as a PNG QR image for gate scanning.
func QRPNG(ticketCode string) ([]byte, error) {
	return qrcode.Encode(ticketCode, qrcode.Medium, qrSize)
}
