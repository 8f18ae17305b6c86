package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin     = "admin"
	RoleAnnotator = "annotator"
)

const (
	AssignmentPending   = "pending"
	AssignmentCompleted = "completed"
)

type User struct {
	ID           string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Username     string    `json:"username" gorm:"size:80;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"size:256;not null"`
	Role         string    `json:"role" gorm:"size:20;not null;default:'annotator'"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Image IDs are supplied by the import manifest, not generated.
type Image struct {
	ID              string    `json:"id" gorm:"size:50;primaryKey"`
	Source          string    `json:"source" gorm:"not null"`
	ImagePath       string    `json:"image_path" gorm:"not null"`
	ImageURL        string    `json:"image_url"`
	OriginalMeta    string    `json:"original_meta,omitempty"`
	AnnotationCount int       `json:"annotation_count" gorm:"not null;default:0"`
	CreatedAt       time.Time `json:"created_at"`
}

// Assignment links one user to one image for annotation work. The unique
// index on (user_id, image_id) doubles as the guard against duplicate
// pending assignments for the same pair.
type Assignment struct {
	ID          string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID      string     `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_user_image_assignment"`
	ImageID     string     `json:"image_id" gorm:"size:50;not null;uniqueIndex:idx_user_image_assignment"`
	Status      string     `json:"status" gorm:"size:20;not null;default:'pending'"`
	AssignedAt  time.Time  `json:"assigned_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	User  User  `json:"-" gorm:"foreignKey:UserID"`
	Image Image `json:"-" gorm:"foreignKey:ImageID"`
}

func (a *Assignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type Annotation struct {
	ID           string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	ImageID      string    `json:"image_id" gorm:"size:50;not null;index"`
	UserID       string    `json:"user_id" gorm:"type:varchar(36);not null;index"`
	AssignmentID *string   `json:"assignment_id,omitempty" gorm:"type:varchar(36)"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	IsApproved   bool      `json:"is_approved" gorm:"index"`
	IsReported   bool      `json:"is_reported" gorm:"default:false"`
	Pass         int       `json:"annotation_pass" gorm:"not null;default:1"`
	AnnotatedAt  time.Time `json:"annotated_at"`

	Image Image `json:"-" gorm:"foreignKey:ImageID"`
	User  User  `json:"-" gorm:"foreignKey:UserID"`
}

func (a *Annotation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
