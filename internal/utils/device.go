package utils

import (
	"log/slog"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
)

const deviceAppID = "tablesync"

// HWID identifies this device to the server. It is derived from the machine id and
// hashed per application, falling back to a random id where the machine id is unavailable.
var HWID = resolveHWID()

func resolveHWID() string {
	id, err := machineid.ProtectedID(deviceAppID)
	if err != nil {
		slog.Debug("machine id unavailable, using random device id", "error", err)
		return uuid.NewString()
	}
	return id[:16]
}
