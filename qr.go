package main

import (
	"log"
	"net/http"

	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// JoinQRHandler serves a PNG QR code of the server's join address so players
// on the same network can scan it instead of typing the IP.
func JoinQRHandler(joinURL func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		png, err := qrcode.Encode(joinURL(), qrcode.Medium, qrSize)
		if err != nil {
			log.Printf("qr encode error: %v", err)
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(png)
	}
}
