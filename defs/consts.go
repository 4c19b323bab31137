package defs

// Common labels for logging
const (
	LabelComponent = "component"
	LabelName      = "name"
	LabelPart      = "part"
	LabelGroup     = "group"

	LabelRemote = "remote"
)

// Well-known group names
const (
	AnalyticsGroup = "group_analytics"
	ErrorGroup     = "group_error"
)

// Log types produced by built-in features
const (
	LogTypeEvent = "event"
	LogTypePage  = "page"
)
