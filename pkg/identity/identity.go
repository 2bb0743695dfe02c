package identity

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/benmeehan/geo-locator/pkg/file"
	"github.com/google/uuid"
)

// Identity holds the locator's stable identifier.
type Identity struct {
	ID   string `json:"locator_id"`
	Name string `json:"locator_name,omitempty"`
}

// DeviceInfoInterface defines methods for managing the locator identity.
type DeviceInfoInterface interface {
	LoadOrCreate() error
	GetDeviceID() string
	GetDeviceIdentity() *Identity
}

// DeviceInfo keeps the identity in a JSON file so published readings carry the
// same id across restarts.
type DeviceInfo struct {
	DeviceInfoFile string
	Identity       Identity
	fileOps        file.FileOperations
}

// NewDeviceInfo initializes a new DeviceInfo instance.
func NewDeviceInfo(filePath string, fileOps file.FileOperations) *DeviceInfo {
	return &DeviceInfo{
		DeviceInfoFile: filePath,
		fileOps:        fileOps,
	}
}

// LoadOrCreate reads the identity file, generating and saving a new id when the
// file is missing or has no id.
func (d *DeviceInfo) LoadOrCreate() error {
	err := d.fileOps.ReadJsonFile(d.DeviceInfoFile, &d.Identity)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read identity file: %w", err)
	}
	if d.Identity.ID != "" {
		return nil
	}

	d.Identity.ID = uuid.NewString()
	if d.Identity.Name == "" {
		if host, err := os.Hostname(); err == nil {
			d.Identity.Name = host
		}
	}

	if dir := filepath.Dir(d.DeviceInfoFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create identity directory: %w", err)
		}
	}
	if err := d.fileOps.WriteJsonFile(d.DeviceInfoFile, d.Identity); err != nil {
		return fmt.Errorf("failed to save identity file: %w", err)
	}
	return nil
}

// GetDeviceIdentity returns the current Identity.
func (d *DeviceInfo) GetDeviceIdentity() *Identity {
	return &d.Identity
}

// GetDeviceID returns the current locator id.
func (d *DeviceInfo) GetDeviceID() string {
	return d.Identity.ID
}
