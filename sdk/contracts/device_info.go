package contracts

// DeviceInfo contains information about a MIDI input device.
type DeviceInfo struct {
	Name         string `json:"name" yaml:"name"`                                     // Device name.
	Manufacturer string `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"` // Device manufacturer.
	EntityName   string `json:"entityName,omitempty" yaml:"entityName,omitempty"`     // Name of the entity to which the device belongs.
}
