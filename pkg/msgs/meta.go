package msgs

import (
	"encoding/json"
	"strings"
)

// DeviceRef is a reference to a device on the message queue.
type DeviceRef struct {
	// Type is the device type, e.g. "cec".
	Type string
	// ID is unique ID of the device.
	ID string
}

// Name retrieves the name from ref, which is also the topic prefix.
func (r DeviceRef) Name() string {
	return r.Type + "/" + r.ID
}

// IsValid indicates DeviceRef is valid.
func (r DeviceRef) IsValid() bool {
	return r.Type != "" && r.ID != "" && !strings.ContainsAny(r.Type+r.ID, "/+#")
}

// ParseDeviceRef parses "type/id".
func ParseDeviceRef(name string) (ref DeviceRef, ok bool) {
	items := strings.Split(name, "/")
	if len(items) != 2 {
		return
	}
	ref.Type, ref.ID = items[0], items[1]
	return ref, ref.IsValid()
}

// DeviceMeta provides metadata for a device.
type DeviceMeta struct {
	Description string            `json:"description,omitempty"`
	Clock       string            `json:"clock,omitempty"`
	Pin         string            `json:"pin,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// DeviceInfo provides information of a device.
type DeviceInfo struct {
	Ref  DeviceRef
	Meta DeviceMeta
}

// EncodeMeta encodes DeviceMeta in JSON.
func EncodeMeta(meta *DeviceMeta) ([]byte, error) {
	return json.Marshal(meta)
}

// DecodeMeta decodes DeviceMeta from JSON.
func DecodeMeta(data []byte) (*DeviceMeta, error) {
	var meta DeviceMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
