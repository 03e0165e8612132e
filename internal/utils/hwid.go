package utils

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
)

// HWID is a stable per-installation identifier. It is derived from the
// machine id so it survives reinstalls; when that is unavailable (some
// containers, stripped-down VMs) it falls back to a random UUID that lives
// for the process only.
var HWID = hwid()

func hwid() string {
	if id, err := machineid.ProtectedID("sitebox"); err == nil {
		return id
	}
	return uuid.NewString()
}
