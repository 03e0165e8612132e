//go:build sonic

package sitemsg

import (
	"github.com/bytedance/sonic"
)

var jsonUnmarshal = sonic.Unmarshal
