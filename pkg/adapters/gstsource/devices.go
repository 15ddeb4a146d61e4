package gstsource

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/user/framegrab/pkg/ports"
)

// Default locations scanned for Video4Linux devices.
const (
	DevGlob  = "/dev/video*"
	SysClass = "/sys/class/video4linux"
)

// ScanDevices lists the device nodes matching devGlob. Names come from
// sysClass/<node>/name when present.
func ScanDevices(devGlob, sysClass string) ([]ports.Device, error) {
	nodes, err := filepath.Glob(devGlob)
	if err != nil {
		return nil, err
	}
	sort.Strings(nodes)

	devices := make([]ports.Device, 0, len(nodes))
	for _, node := range nodes {
		base := filepath.Base(node)
		name := base
		if data, err := os.ReadFile(filepath.Join(sysClass, base, "name")); err == nil {
			if n := strings.TrimSpace(string(data)); n != "" {
				name = n
			}
		}
		devices = append(devices, ports.Device{
			ID:          node,
			Name:        name,
			Description: "Video4Linux device " + base,
		})
	}
	return devices, nil
}
