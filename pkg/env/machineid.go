// Package env provides the environment shared by commands.
package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// MachineID retrieves the unique ID identifying the machine,
// derived from the OS machine ID and keyed by the app, so the raw ID
// isn't exposed on the message queue. It falls back to the host name.
func MachineID() string {
	id, err := machineid.ProtectedID("cec")
	if err == nil {
		return id[:16]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "unknown"
}
