package chat

// NoticeType categorizes an ephemeral system notice.
type NoticeType string

const (
	NoticeInfo  NoticeType = "info"
	NoticeJoin  NoticeType = "join"
	NoticeLeave NoticeType = "leave"
	NoticeError NoticeType = "error"
)

// SystemNotice is broadcast-only and never persisted.
type SystemNotice struct {
	Message string     `json:"message"`
	Type    NoticeType `json:"type"`
}
