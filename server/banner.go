// File: server/banner.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

// Version is the library release tag.
const Version = "v1.0.0"

const banner = `
  _     _       _                 _              _
 | |__ (_) ___ | | ___   __ _  __| |    _   _ __| |_ __
 | '_ \| |/ _ \| |/ _ \ / _` + "`" + ` |/ _` + "`" + ` |   | | | / _` + "`" + ` | '_ \
 | | | | | (_) | | (_) | (_| | (_| |   | |_| | (_| | |_) |
 |_| |_|_|\___/|_|\___/ \__,_|\__,_|    \__,_|\__,_| .__/
                                                   |_|`
