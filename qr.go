/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/partyline/lobby"
)

const qrSize = 320

func joinURL(cfg *Config, r *http.Request, code string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}

	return scheme + "://" + r.Host + cfg.prefix + "/?room=" + code
}

// serveQR renders a PNG QR code pointing other players at a live room.
func serveQR(cfg *Config, h *Hub, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code := lobby.NormalizeCode(p.ByName("code"))

		securityHeaders(cfg, w)

		if code == "" || !h.Lookup(r.Context(), code) {
			http.Error(w, "room not found", http.StatusNotFound)

			return
		}

		png, err := qrcode.Encode(joinURL(cfg, r, code), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))

		_, err = w.Write(png)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: QR code for room %s to %s", code, realIP(r))
	}
}
