package base

import (
	"fmt"
	"time"
)

// Log represents one telemetry record
//
// A Log is owned by the channel once enqueued and must not be modified by the caller afterwards
type Log struct {
	Type       string            `json:"type" msgpack:"type"`
	ID         string            `json:"id,omitempty" msgpack:"id"` // Unique ID, assigned at enqueue if empty
	Timestamp  time.Time         `json:"timestamp" msgpack:"ts"`    // Creation time, assigned at enqueue if zero
	SessionID  string            `json:"sid,omitempty" msgpack:"sid,omitempty"`
	Device     *Device           `json:"device,omitempty" msgpack:"device,omitempty"`
	Name       string            `json:"name,omitempty" msgpack:"name,omitempty"`
	Properties map[string]string `json:"properties,omitempty" msgpack:"props,omitempty"`
}

// Device is the snapshot of device and application info attached to logs
type Device struct {
	SDKName        string `json:"sdkName" msgpack:"sdkName"`
	SDKVersion     string `json:"sdkVersion" msgpack:"sdkVersion"`
	Model          string `json:"model,omitempty" msgpack:"model,omitempty"`
	OEMName        string `json:"oemName,omitempty" msgpack:"oemName,omitempty"`
	OSName         string `json:"osName" msgpack:"osName"`
	OSVersion      string `json:"osVersion" msgpack:"osVersion"`
	OSAPILevel     int    `json:"osApiLevel,omitempty" msgpack:"osApiLevel,omitempty"`
	Locale         string `json:"locale" msgpack:"locale"`
	TimeZoneOffset int    `json:"timeZoneOffset" msgpack:"timeZoneOffset"` // in minutes
	ScreenSize     string `json:"screenSize,omitempty" msgpack:"screenSize,omitempty"`
	AppVersion     string `json:"appVersion" msgpack:"appVersion"`
	AppBuild       string `json:"appBuild" msgpack:"appBuild"`
}

// LogContainer is the unit of logs sent to ingestion in one request
type LogContainer struct {
	Logs []*Log `json:"logs"`
}

func (log *Log) String() string {
	return fmt.Sprintf("type=%s id=%s", log.Type, log.ID)
}
