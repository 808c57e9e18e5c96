package audiodev

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/xaionaro-go/screenrec/types"
	"github.com/xaionaro-go/xsync"
)

func (c *Context) captureDevices(ctx context.Context) ([]malgo.DeviceInfo, error) {
	return xsync.DoR2(ctx, &c.locker, func() ([]malgo.DeviceInfo, error) {
		infos, err := c.allocated.Context.Devices(malgo.Capture)
		if err != nil {
			return nil, fmt.Errorf("unable to list capture devices: %w", err)
		}
		return infos, nil
	})
}

func describeDevice(info malgo.DeviceInfo) types.AudioInputDevice {
	return types.AudioInputDevice{
		ID:        info.ID.String(),
		Name:      info.Name(),
		IsDefault: info.IsDefault != 0,
	}
}

// AudioInputDevices lists the microphones; an empty list is not an error.
func (c *Context) AudioInputDevices(ctx context.Context) ([]types.AudioInputDevice, error) {
	infos, err := c.captureDevices(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]types.AudioInputDevice, 0, len(infos))
	for _, info := range infos {
		result = append(result, describeDevice(info))
	}
	return result, nil
}

// matchDevice finds the device by its ID, or by its name (case-insensitive)
// if no ID matches; it returns -1 if there is no such device.
func matchDevice(devices []types.AudioInputDevice, query string) int {
	for idx, dev := range devices {
		if dev.ID == query {
			return idx
		}
	}
	for idx, dev := range devices {
		if strings.EqualFold(dev.Name, query) {
			return idx
		}
	}
	return -1
}

func (c *Context) findCaptureDevice(
	ctx context.Context,
	query string,
) (*malgo.DeviceInfo, error) {
	infos, err := c.captureDevices(ctx)
	if err != nil {
		return nil, err
	}
	devices := make([]types.AudioInputDevice, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, describeDevice(info))
	}
	idx := matchDevice(devices, query)
	if idx < 0 {
		return nil, fmt.Errorf("audio input device '%s' not found among %d devices: %w", query, len(devices), types.ErrDeviceUnavailable)
	}
	return &infos[idx], nil
}
