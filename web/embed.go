package web

import "embed"

// TemplatesFS holds the server-rendered page templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the page's script and stylesheet.
//
//go:embed static/*
var StaticFS embed.FS
