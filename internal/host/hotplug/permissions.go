package hotplug

import (
	"context"

	"github.com/leandrodaf/midimonitor/sdk/contracts"
)

// GrantedPermissions answers permission queries for desktop MIDI APIs,
// which have no consent dialog: access is always granted.
type GrantedPermissions struct{}

// QueryPermission implements contracts.PermissionQuerier.
func (GrantedPermissions) QueryPermission(ctx context.Context, name string) (contracts.PermissionState, error) {
	if err := ctx.Err(); err != nil {
		return contracts.PermissionPrompt, err
	}
	return contracts.PermissionGranted, nil
}
