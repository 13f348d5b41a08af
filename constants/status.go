package constants

// ExtractionStatus is the lifecycle state of an artist profile.
type ExtractionStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending    ExtractionStatus = "pending"    // uploaded, not yet extracted
	StatusProcessing ExtractionStatus = "processing" // extraction in progress
	StatusCompleted  ExtractionStatus = "completed"  // fields extracted
	StatusFailed     ExtractionStatus = "failed"     // terminal failure, may be reprocessed
	StatusVerified   ExtractionStatus = "verified"   // confirmed by an admin
)

// Valid reports whether s is one of the known statuses.
func (s ExtractionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusVerified:
		return true
	}
	return false
}

// Public reports whether profiles in this state may be shown publicly.
func (s ExtractionStatus) Public() bool {
	return s == StatusCompleted || s == StatusVerified
}
