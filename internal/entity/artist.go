package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/artists-registry/constants"
	"github.com/joseph-ayodele/artists-registry/internal/confidence"
)

// Artist is a persisted artist profile for data transfer between layers.
type Artist struct {
	ID           uuid.UUID `json:"id"`
	ArtistName   *string   `json:"artistName"`
	GuruName     *string   `json:"guruName"`
	Gharana      *string   `json:"gharana"`
	Biography    *string   `json:"biography"`
	Description  *string   `json:"description"`
	Phone        *string   `json:"phone"`
	Email        *string   `json:"email"`
	Address      *string   `json:"address"`
	ProfilePhoto *string   `json:"profilePhoto,omitempty"`

	OriginalDocument Document `json:"originalDocument"`

	ExtractionStatus    constants.ExtractionStatus `json:"extractionStatus"`
	ExtractionError     *string                    `json:"extractionError,omitempty"`
	RawText             string                     `json:"rawText,omitempty"`
	Method              string                     `json:"method,omitempty"`
	Confidence          confidence.Tier            `json:"confidence,omitempty"`
	FallbackUsed        bool                       `json:"fallbackUsed"`
	ProcessingTimeMs    int64                      `json:"processingTimeMs"`
	EnhancementProvider *string                    `json:"enhancementProvider,omitempty"`

	IsVerified bool       `json:"isVerified"`
	VerifiedBy *string    `json:"verifiedBy,omitempty"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
	CreatedBy  string     `json:"createdBy"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Document describes the uploaded source file.
type Document struct {
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	FileType   string    `json:"fileType"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// PublicArtist is the subset shown on the public directory.
type PublicArtist struct {
	ID           uuid.UUID `json:"id"`
	ArtistName   *string   `json:"artistName"`
	GuruName     *string   `json:"guruName"`
	Gharana      *string   `json:"gharana"`
	Biography    *string   `json:"biography"`
	Description  *string   `json:"description"`
	ProfilePhoto *string   `json:"profilePhoto,omitempty"`
	IsVerified   bool      `json:"isVerified"`
}

func (a *Artist) Public() PublicArtist {
	return PublicArtist{
		ID:           a.ID,
		ArtistName:   a.ArtistName,
		GuruName:     a.GuruName,
		Gharana:      a.Gharana,
		Biography:    a.Biography,
		Description:  a.Description,
		ProfilePhoto: a.ProfilePhoto,
		IsVerified:   a.IsVerified,
	}
}
