// Package migrations схема базы данных
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
