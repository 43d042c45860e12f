/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func setupLogging(cfg *Config) {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: logDate,
	}

	level := zerolog.ErrorLevel
	if cfg.verbose {
		level = zerolog.DebugLevel
	}

	log.Logger = zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Info().Msgf(format, args...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
