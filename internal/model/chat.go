package model

const (
	OwnerKindUser      = "user"
	OwnerKindAnonymous = "anonymous"
)

type Chat struct {
	ID        string `json:"id"`
	OwnerKind string `json:"owner_kind"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	Ctime     int64  `json:"ctime"`
	Mtime     int64  `json:"mtime"`
}
