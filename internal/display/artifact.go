package display

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"shop-checkout/internal/checkout"
	"strings"

	"github.com/skip2/go-qrcode"
)

const qrPNGSize = 256

// Artifact prints a payment artifact for the terminal. Link-style artifacts
// are also drawn as a scannable QR; inline PNG QR images are saved to
// qrOut (or qr-<order>.png when qrOut is empty).
func Artifact(w io.Writer, p *checkout.Payment, qrOut string) error {
	fmt.Fprintf(w, "Order:  %s\n", p.OrderID)
	fmt.Fprintf(w, "Amount: ₹%s\n", p.Amount.StringFixed(2))

	switch p.Method {
	case checkout.MethodUPI:
		return upiArtifact(w, p, qrOut)
	case checkout.MethodCard:
		fmt.Fprintf(w, "\nComplete the card payment at:\n  %s\n\n", p.PaymentLink)
		return linkQR(w, p.PaymentLink, qrOut)
	default:
		return fmt.Errorf("%w: %q", checkout.ErrUnknownMethod, p.Method)
	}
}

func upiArtifact(w io.Writer, p *checkout.Payment, qrOut string) error {
	png, ok, err := decodePNGDataURL(p.QRCodeURL)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(w, "\nScan with any UPI app. QR image: %s\n\n", p.QRCodeURL)
		return linkQR(w, p.QRCodeURL, qrOut)
	}

	if qrOut == "" {
		qrOut = fmt.Sprintf("qr-%s.png", p.OrderID)
	}
	if err := os.WriteFile(qrOut, png, 0o644); err != nil {
		return fmt.Errorf("write qr image: %w", err)
	}
	fmt.Fprintf(w, "\nScan the QR saved to %s with any UPI app.\n\n", qrOut)
	return nil
}

func linkQR(w io.Writer, content, pngOut string) error {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("generate qr code: %w", err)
	}
	fmt.Fprintln(w, qr.ToSmallString(false))

	if pngOut != "" {
		if err := qr.WriteFile(qrPNGSize, pngOut); err != nil {
			return fmt.Errorf("write qr image: %w", err)
		}
		fmt.Fprintf(w, "QR image saved to %s\n", pngOut)
	}
	return nil
}

// decodePNGDataURL reports ok=false when s is not a base64 data URL.
func decodePNGDataURL(s string) ([]byte, bool, error) {
	if !strings.HasPrefix(s, "data:") {
		return nil, false, nil
	}
	meta, data, found := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return nil, false, fmt.Errorf("unsupported qr data url")
	}
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode qr data url: %w", err)
	}
	return b, true, nil
}
