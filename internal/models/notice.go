package models

// NoticeLevel grades a transient user-facing notice shown by the render
// layer.
type NoticeLevel string

// Notice levels understood by the render layer.
const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)
