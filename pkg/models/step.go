package models

import "time"

// FileStatus tracks the upload state of a step's binary object.
type FileStatus string

const (
	FileStatusWaiting  FileStatus = "WAITING"  // Upload URL issued, bytes not confirmed yet
	FileStatusUploaded FileStatus = "UPLOADED" // Bytes confirmed in the object store
)

// Step is implemented by every step record so stores can handle them
// generically. The methods are safe on nil records and return "".
type Step interface {
	StepID() string
	StepFlujoID() string
	// StepCreatedAt is when the record was last written by a submission.
	StepCreatedAt() time.Time
}

// BinaryStep is a step whose payload lives in the object store.
type BinaryStep interface {
	Step
	StepObjectKey() string
}

// StepFile references a binary stored in the object store.
type StepFile struct {
	ID        string     `json:"id"`
	ObjectKey string     `json:"object_key"`
	Status    FileStatus `json:"status"`
}

// FaceID is the face identity step. Its photo is pushed by the client straight
// to the object store through a pre-signed URL.
type FaceID struct {
	ID        string    `json:"id"`
	FlujoID   string    `json:"flujo_id"`
	File      StepFile  `json:"file"`
	CreatedAt time.Time `json:"created_at"`
}

func (f *FaceID) StepID() string {
	if f == nil {
		return ""
	}

	return f.ID
}

func (f *FaceID) StepFlujoID() string {
	if f == nil {
		return ""
	}

	return f.FlujoID
}

func (f *FaceID) StepCreatedAt() time.Time {
	if f == nil {
		return time.Time{}
	}

	return f.CreatedAt
}

func (f *FaceID) StepObjectKey() string {
	if f == nil {
		return ""
	}

	return f.File.ObjectKey
}

// FaceIDPublic is the representation of a face identity step returned to callers.
type FaceIDPublic struct {
	ID        string     `json:"id"`
	FlujoID   string     `json:"flujo_id"`
	Status    FileStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Public returns the public representation of the face identity step.
func (f *FaceID) Public() *FaceIDPublic {
	return &FaceIDPublic{
		ID:        f.ID,
		FlujoID:   f.FlujoID,
		Status:    f.File.Status,
		CreatedAt: f.CreatedAt,
	}
}

// FaceIDUpload is returned when a face identity step is submitted.
type FaceIDUpload struct {
	FlujoID   string `json:"flujo_id"`
	UploadURL string `json:"upload_url"`
}

// ContactInfo is the contact information step.
type ContactInfo struct {
	ID          string    `json:"id"`
	FlujoID     string    `json:"flujo_id"`
	FullName    string    `json:"full_name"`
	BirthDate   string    `json:"birth_date"`
	BornPlace   string    `json:"born_place"`
	PhoneNumber string    `json:"phone_number"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c *ContactInfo) StepID() string {
	if c == nil {
		return ""
	}

	return c.ID
}

func (c *ContactInfo) StepFlujoID() string {
	if c == nil {
		return ""
	}

	return c.FlujoID
}

func (c *ContactInfo) StepCreatedAt() time.Time {
	if c == nil {
		return time.Time{}
	}

	return c.CreatedAt
}

// ContactInfoPublic is the representation of contact information returned to callers.
type ContactInfoPublic struct {
	ID          string    `json:"id"`
	FlujoID     string    `json:"flujo_id"`
	FullName    string    `json:"full_name"`
	BirthDate   string    `json:"birth_date"`
	BornPlace   string    `json:"born_place"`
	PhoneNumber string    `json:"phone_number"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

// Public returns the public representation of the contact information.
func (c *ContactInfo) Public() *ContactInfoPublic {
	return &ContactInfoPublic{
		ID:          c.ID,
		FlujoID:     c.FlujoID,
		FullName:    c.FullName,
		BirthDate:   c.BirthDate,
		BornPlace:   c.BornPlace,
		PhoneNumber: c.PhoneNumber,
		Email:       c.Email,
		CreatedAt:   c.CreatedAt,
	}
}

// Signature is the handwritten signature step, uploaded inline as an image.
type Signature struct {
	ID        string    `json:"id"`
	FlujoID   string    `json:"flujo_id"`
	ObjectKey string    `json:"object_key"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Signature) StepID() string {
	if s == nil {
		return ""
	}

	return s.ID
}

func (s *Signature) StepFlujoID() string {
	if s == nil {
		return ""
	}

	return s.FlujoID
}

func (s *Signature) StepCreatedAt() time.Time {
	if s == nil {
		return time.Time{}
	}

	return s.CreatedAt
}

func (s *Signature) StepObjectKey() string {
	if s == nil {
		return ""
	}

	return s.ObjectKey
}

// SignaturePublic is the representation of a signature returned to callers.
type SignaturePublic struct {
	ID        string    `json:"id"`
	FlujoID   string    `json:"flujo_id"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Public returns the public representation of the signature.
func (s *Signature) Public() *SignaturePublic {
	return &SignaturePublic{
		ID:        s.ID,
		FlujoID:   s.FlujoID,
		MimeType:  s.MimeType,
		CreatedAt: s.CreatedAt,
	}
}
