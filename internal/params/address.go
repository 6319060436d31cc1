package params

import (
	"fmt"
	"strings"
)

var addressTable = map[ID]string{
	GrainRate:      "/GrainRate",
	Asynchronicity: "/Asynchronicity",
	Intermittency:  "/Intermittency",
	Streams:        "/Streams",
	PlaybackRate:   "/PlaybackRate",
	FilterCenter:   "/FilterCenter",
	Resonance:      "/Resonance",
	SoundFile:      "/SoundFile",
	ScanBegin:      "/ScanBegin",
	ScanRange:      "/ScanRange",
	ScanSpeed:      "/ScanSpeed",
	GrainDuration:  "/GrainDuration",
	EnvelopeShape:  "/EnvelopeShape",
	Pan:            "/Pan",
	Amplitude:      "/Amplitude",
}

// Address returns the fixed engine address for id. It panics if id is not a
// canonical parameter id.
func Address(id ID) string {
	addr, ok := addressTable[id]
	if !ok {
		panic(fmt.Sprintf("params: no address for unknown parameter id %q", id))
	}
	return addr
}

// NormalizePrefix trims whitespace, strips trailing slashes and ensures a
// single leading slash. An empty or all-slash prefix normalizes to "".
func NormalizePrefix(prefix string) string {
	p := strings.TrimSpace(prefix)
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// ResolveAddress joins the normalized prefix with the fixed address for id.
//
//	ResolveAddress(GrainRate, "/prefix") == "/prefix/GrainRate"
//	ResolveAddress(GrainRate, "")        == "/GrainRate"
func ResolveAddress(id ID, prefix string) string {
	return NormalizePrefix(prefix) + Address(id)
}
