package session

import "strings"

// DeviceProfile describes a simulated headset model. The profile fixes the
// channel count the generator produces for sessions bound to that device.
type DeviceProfile struct {
	Type     string `json:"type"`
	Channels int    `json:"channels"`
}

// deviceProfiles maps a device identifier prefix (the part before the first
// dash, e.g. "crown" in "crown-0042") to its profile.
var deviceProfiles = map[string]DeviceProfile{
	"sim":     {Type: "simulator", Channels: 32},
	"muse2":   {Type: "muse-2", Channels: 4},
	"crown":   {Type: "crown", Channels: 8},
	"insight": {Type: "insight", Channels: 5},
	"flex":    {Type: "epoc-flex", Channels: 32},
}

// lookupDevice resolves a device identifier to its profile.
func lookupDevice(deviceID string) (DeviceProfile, bool) {
	prefix, _, _ := strings.Cut(deviceID, "-")
	p, ok := deviceProfiles[prefix]
	return p, ok
}
