package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/posegrain/internal/output"
	"github.com/banshee-data/posegrain/internal/serialport"
)

// DefaultConfigPath is where cmd/posegrain looks when no -config flag is
// given. A missing file at this path is not an error.
const DefaultConfigPath = "config/posegrain.json"

// AppConfig is the on-disk configuration of the bridge. Every field is
// optional; the Get* methods supply the defaults.
type AppConfig struct {
	// Output backend
	Backend *string `json:"backend,omitempty"` // native | relay | device

	// native
	EngineHost      *string `json:"engine_host,omitempty"`
	EnginePort      *int    `json:"engine_port,omitempty"`
	TelemetryListen *string `json:"telemetry_listen,omitempty"` // host:port, empty disables

	// relay
	RelayTarget *string `json:"relay_target,omitempty"`

	// device
	SerialPort     *string `json:"serial_port,omitempty"` // empty selects the first port
	SerialBaud     *int    `json:"serial_baud,omitempty"`
	MIDIChannel    *int    `json:"midi_channel,omitempty"` // 0-15
	BaseController *int    `json:"base_controller,omitempty"`

	// Addressing
	AddressPrefix *string `json:"address_prefix,omitempty"`
	ChannelCount  *int    `json:"channel_count,omitempty"`
	ChannelPrefix *string `json:"channel_prefix,omitempty"`

	// Files and services
	RegistryPath *string `json:"registry_path,omitempty"` // empty uses the embedded registry
	PresetDBPath *string `json:"preset_db_path,omitempty"`
	AdminListen  *string `json:"admin_listen,omitempty"`
	Debug        *bool   `json:"debug,omitempty"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyAppConfig returns an AppConfig with all fields unset.
func EmptyAppConfig() *AppConfig {
	return &AppConfig{}
}

// DefaultAppConfig returns an AppConfig with every field set to its default.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Backend:         ptrString(string(output.KindNative)),
		EngineHost:      ptrString("127.0.0.1"),
		EnginePort:      ptrInt(57120),
		TelemetryListen: ptrString("127.0.0.1:57121"),
		RelayTarget:     ptrString(""),
		SerialPort:      ptrString(""),
		SerialBaud:      ptrInt(serialport.MIDIBaudRate),
		MIDIChannel:     ptrInt(0),
		BaseController:  ptrInt(int(output.DefaultBaseController)),
		AddressPrefix:   ptrString(""),
		ChannelCount:    ptrInt(output.DefaultChannelCount),
		ChannelPrefix:   ptrString(output.DefaultChannelPrefix),
		RegistryPath:    ptrString(""),
		PresetDBPath:    ptrString("posegrain.db"),
		AdminListen:     ptrString("127.0.0.1:8090"),
		Debug:           ptrBool(false),
	}
}

// LoadAppConfig loads an AppConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file keep their defaults.
func LoadAppConfig(path string) (*AppConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAppConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *AppConfig) Validate() error {
	if c.Backend != nil && !output.Kind(*c.Backend).Valid() {
		return fmt.Errorf("backend must be one of %v, got %q", output.Kinds, *c.Backend)
	}

	if c.EnginePort != nil && (*c.EnginePort < 1 || *c.EnginePort > 65535) {
		return fmt.Errorf("engine_port must be between 1 and 65535, got %d", *c.EnginePort)
	}

	for name, addr := range map[string]*string{
		"telemetry_listen": c.TelemetryListen,
		"admin_listen":     c.AdminListen,
	} {
		if addr == nil || *addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(*addr); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, *addr, err)
		}
	}

	if c.SerialBaud != nil && *c.SerialBaud < 0 {
		return fmt.Errorf("serial_baud must be non-negative, got %d", *c.SerialBaud)
	}

	if c.MIDIChannel != nil && (*c.MIDIChannel < 0 || *c.MIDIChannel > 15) {
		return fmt.Errorf("midi_channel must be between 0 and 15, got %d", *c.MIDIChannel)
	}

	if c.BaseController != nil {
		bc := *c.BaseController
		if bc < 0 || bc > 127 || (output.DeviceOptions{BaseController: uint8(bc)}).Validate() != nil {
			return fmt.Errorf("base_controller %d leaves no room for %d channels", bc, output.MaxChannelCount)
		}
	}

	if c.ChannelCount != nil && (*c.ChannelCount < 1 || *c.ChannelCount > output.MaxChannelCount) {
		return fmt.Errorf("channel_count must be between 1 and %d, got %d", output.MaxChannelCount, *c.ChannelCount)
	}

	if c.ChannelPrefix != nil && strings.ContainsAny(*c.ChannelPrefix, " #*,?[]{}") {
		return fmt.Errorf("channel_prefix %q contains characters not allowed in an OSC address", *c.ChannelPrefix)
	}

	return nil
}

// GetBackend returns the backend kind or the default (native).
func (c *AppConfig) GetBackend() output.Kind {
	if c.Backend == nil || *c.Backend == "" {
		return output.KindNative
	}
	return output.Kind(*c.Backend)
}

// GetEngineHost returns the engine_host value or the default.
func (c *AppConfig) GetEngineHost() string {
	if c.EngineHost == nil || *c.EngineHost == "" {
		return "127.0.0.1"
	}
	return *c.EngineHost
}

// GetEnginePort returns the engine_port value or the default.
func (c *AppConfig) GetEnginePort() int {
	if c.EnginePort == nil {
		return 57120
	}
	return *c.EnginePort
}

// GetTelemetryListen returns the telemetry_listen value or the default.
// An explicit empty string disables the listener.
func (c *AppConfig) GetTelemetryListen() string {
	if c.TelemetryListen == nil {
		return "127.0.0.1:57121"
	}
	return *c.TelemetryListen
}

func (c *AppConfig) GetRelayTarget() string {
	if c.RelayTarget == nil {
		return ""
	}
	return *c.RelayTarget
}

func (c *AppConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetSerialBaud returns the serial_baud value or the MIDI line rate.
func (c *AppConfig) GetSerialBaud() int {
	if c.SerialBaud == nil || *c.SerialBaud == 0 {
		return serialport.MIDIBaudRate
	}
	return *c.SerialBaud
}

func (c *AppConfig) GetMIDIChannel() int {
	if c.MIDIChannel == nil {
		return 0
	}
	return *c.MIDIChannel
}

// GetBaseController returns the base_controller value or the default.
func (c *AppConfig) GetBaseController() int {
	if c.BaseController == nil || *c.BaseController == 0 {
		return int(output.DefaultBaseController)
	}
	return *c.BaseController
}

func (c *AppConfig) GetAddressPrefix() string {
	if c.AddressPrefix == nil {
		return ""
	}
	return *c.AddressPrefix
}

// GetChannelCount returns the channel_count value or the default.
func (c *AppConfig) GetChannelCount() int {
	if c.ChannelCount == nil {
		return output.DefaultChannelCount
	}
	return output.NormalizeChannelCount(*c.ChannelCount)
}

// GetChannelPrefix returns the channel_prefix value or the default.
func (c *AppConfig) GetChannelPrefix() string {
	if c.ChannelPrefix == nil || *c.ChannelPrefix == "" {
		return output.DefaultChannelPrefix
	}
	return *c.ChannelPrefix
}

func (c *AppConfig) GetRegistryPath() string {
	if c.RegistryPath == nil {
		return ""
	}
	return *c.RegistryPath
}

// GetPresetDBPath returns the preset_db_path value or the default. An
// explicit empty string disables presets.
func (c *AppConfig) GetPresetDBPath() string {
	if c.PresetDBPath == nil {
		return "posegrain.db"
	}
	return *c.PresetDBPath
}

// GetAdminListen returns the admin_listen value or the default. An explicit
// empty string disables the admin server.
func (c *AppConfig) GetAdminListen() string {
	if c.AdminListen == nil {
		return "127.0.0.1:8090"
	}
	return *c.AdminListen
}

func (c *AppConfig) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}

// OutputOptions translates the configuration into backend options.
func (c *AppConfig) OutputOptions() output.Options {
	return output.Options{
		Kind:            c.GetBackend(),
		ChannelCount:    c.GetChannelCount(),
		ChannelPrefix:   c.GetChannelPrefix(),
		EngineHost:      c.GetEngineHost(),
		EnginePort:      c.GetEnginePort(),
		TelemetryListen: c.GetTelemetryListen(),
		RelayTarget:     c.GetRelayTarget(),
		SerialPort:      c.GetSerialPort(),
		Serial:          serialport.PortOptions{BaudRate: c.GetSerialBaud()},
		MIDIChannel:     uint8(c.GetMIDIChannel()),
		BaseController:  uint8(c.GetBaseController()),
	}
}
