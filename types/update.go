package types

// ------------------------
// Firmware update
// ------------------------

// UpdateStatus lives only for the duration of an update attempt and is
// reset implicitly when a new upload begins.
type UpdateStatus string

const (
	UpdatePending    UpdateStatus = "pending"
	UpdateSuccessful UpdateStatus = "successful"
	UpdateFailed     UpdateStatus = "failed"
)

// UpdateInfo is the /OTAstatus response body.
type UpdateInfo struct {
	Status      UpdateStatus `json:"status"`
	CompileDate string       `json:"compile_date"`
	CompileTime string       `json:"compile_time"`
	Version     string       `json:"version"`
}
