/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/partyline/games"
)

const robots = `User-agent: Amazonbot
Disallow: /

User-agent: Applebot-Extended
Disallow: /

User-agent: Bytespider
Disallow: /

User-agent: CCBot
Disallow: /

User-agent: ClaudeBot
Disallow: /

User-agent: Google-Extended
Disallow: /

User-agent: GPTBot
Disallow: /

User-agent: meta-externalagent
Disallow: /`

func humanReadableSize(bytes int) string {
	const unit = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "kMGTPE"[exp])
}

// writeText sends a plain text body and logs it under the given page name.
func writeText(cfg *Config, w http.ResponseWriter, r *http.Request, errs chan<- error, page, body string, cache bool) {
	startTime := time.Now()

	if cache {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	securityHeaders(cfg, w)
	w.WriteHeader(http.StatusOK)

	written, err := w.Write([]byte(body))
	if err != nil {
		errs <- err

		return
	}

	logf(cfg, "SERVE: %s (%s) to %s in %s",
		page,
		humanReadableSize(written),
		realIP(r),
		time.Since(startTime).Round(time.Microsecond),
	)
}

func indexText(cfg *Config, gameTypes []string) string {
	var b strings.Builder

	b.WriteString("partyline v" + releaseVersion + "\n\n")
	b.WriteString("Games:\n")
	for _, g := range gameTypes {
		b.WriteString("  " + g + "\n")
	}

	b.WriteString("\nConnect: " + cfg.prefix + "/ws\n")
	b.WriteString("Envelope: {\"event\": ..., \"id\": ..., \"payload\": ...}\n")
	b.WriteString("Events: create-room, join-room, leave-room, start-room, add-bots, game-event, sync\n")
	b.WriteString("Game events: " + strings.Join(games.EventNames(), ", ") + "\n")
	b.WriteString("Join QR: " + cfg.prefix + "/rooms/:code/qr\n")

	return b.String()
}

func serveIndex(cfg *Config, gameTypes []string, errs chan<- error) httprouter.Handle {
	body := indexText(cfg, gameTypes)

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeText(cfg, w, r, errs, "Index", body, false)
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeText(cfg, w, r, errs, "Robots", robots, true)
	}
}

func serveVersion(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeText(cfg, w, r, errs, "Version page", "partyline v"+releaseVersion+"\n", false)
	}
}
