//go:build !sonic

package sitemsg

import (
	"github.com/goccy/go-json"
)

var jsonUnmarshal = json.Unmarshal
