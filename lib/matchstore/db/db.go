// Package db carries the embedded sqlite schema of the match store.
package db

import _ "embed"

//go:embed schema.sql
var Schema string
