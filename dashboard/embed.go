// Package dashboard holds the admin dashboard page served by the API.
package dashboard

import "embed"

// DistFS holds the dashboard/dist files.
//
//go:embed all:dist
var DistFS embed.FS
