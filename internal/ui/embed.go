package ui

import "embed"

// Dist embeds the static admin dashboard page served at /admin. A full
// frontend build can be dropped into dist/ and is picked up at compile time.
//
//go:embed all:dist
var Dist embed.FS
