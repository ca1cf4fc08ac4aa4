// SPDX-License-Identifier: AGPL-3.0-or-later

// Package web embeds the documentation page served at the root path.
package web

import "embed"

//go:embed index.html
var Assets embed.FS
