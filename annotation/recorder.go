package annotation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/datacollect-labs/annoserve/models"
	"gorm.io/gorm"
)

// RecordInput is one submitted question/answer pair.
type RecordInput struct {
	ImageID      string
	UserID       string
	AssignmentID *string
	Question     string
	Answer       string
	Pass         int
}

// Record validates and persists an annotation. The insert, the counter
// increment and the assignment completion run in one transaction so a failure
// anywhere leaves no partial write behind.
func Record(db *gorm.DB, in RecordInput) (*models.Annotation, error) {
	question := strings.TrimSpace(in.Question)
	answer := strings.TrimSpace(in.Answer)
	if question == "" || answer == "" {
		return nil, fmt.Errorf("%w: question and answer must be non-empty", ErrValidation)
	}
	if in.ImageID == "" {
		return nil, fmt.Errorf("%w: image_id is required", ErrValidation)
	}
	if in.Pass < 0 {
		return nil, fmt.Errorf("%w: annotation pass must not be negative", ErrValidation)
	}
	pass := in.Pass
	if pass == 0 {
		pass = 1
	}

	var created models.Annotation
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := resolveReferences(tx, in.ImageID, in.UserID); err != nil {
			return err
		}

		assignment, err := resolveAssignment(tx, in.AssignmentID, in.ImageID, in.UserID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		created = models.Annotation{
			ImageID:     in.ImageID,
			UserID:      in.UserID,
			Question:    question,
			Answer:      answer,
			IsApproved:  true, // submitting a Q&A pair auto-approves
			IsReported:  false,
			Pass:        pass,
			AnnotatedAt: now,
		}
		if assignment != nil {
			created.AssignmentID = &assignment.ID
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		if err := incrementAnnotationCount(tx, in.ImageID); err != nil {
			return err
		}

		if assignment != nil {
			if err := completeAssignment(tx, assignment, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Report flags an image as broken or otherwise unusable. No question/answer
// text is required; the record carries is_reported = true and is never
// approved. Whether a report bumps the image's annotation counter is a policy
// switch (Options.ReportCountsAnnotation), off by default so a reported image
// still reads as unresolved.
func Report(db *gorm.DB, imageID, userID, reason string, opts Options) (*models.Annotation, error) {
	if imageID == "" {
		return nil, fmt.Errorf("%w: image_id is required", ErrValidation)
	}

	var created models.Annotation
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := resolveReferences(tx, imageID, userID); err != nil {
			return err
		}

		assignment, err := resolveAssignment(tx, nil, imageID, userID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		created = models.Annotation{
			ImageID:     imageID,
			UserID:      userID,
			Question:    strings.TrimSpace(reason),
			IsApproved:  false,
			IsReported:  true,
			Pass:        1,
			AnnotatedAt: now,
		}
		if assignment != nil {
			created.AssignmentID = &assignment.ID
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		if opts.ReportCountsAnnotation {
			if err := incrementAnnotationCount(tx, imageID); err != nil {
				return err
			}
		}

		if assignment != nil {
			if err := completeAssignment(tx, assignment, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Reject releases the user's claim on an image without recording anything
// substantive. By default the pending assignment is dropped so the image
// resurfaces for the selector; with block set the assignment is completed
// empty and the image stays off this user's queue.
func Reject(db *gorm.DB, imageID, userID string, block bool) error {
	if imageID == "" {
		return fmt.Errorf("%w: image_id is required", ErrValidation)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := resolveReferences(tx, imageID, userID); err != nil {
			return err
		}

		var assignment models.Assignment
		err := tx.Where("user_id = ? AND image_id = ? AND status = ?",
			userID, imageID, models.AssignmentPending).
			First(&assignment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil // nothing claimed, nothing to release
			}
			return err
		}

		if block {
			return completeAssignment(tx, &assignment, time.Now().UTC())
		}
		return tx.Delete(&assignment).Error
	})
}

func resolveReferences(tx *gorm.DB, imageID, userID string) error {
	var image models.Image
	if err := tx.First(&image, "id = ?", imageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: image %s", ErrNotFound, imageID)
		}
		return err
	}
	var user models.User
	if err := tx.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return err
	}
	return nil
}

// resolveAssignment returns the assignment the annotation should complete.
// An explicit assignment ID must belong to the same user/image pair;
// otherwise the user's pending assignment for the image is picked up when one
// exists.
func resolveAssignment(tx *gorm.DB, assignmentID *string, imageID, userID string) (*models.Assignment, error) {
	if assignmentID != nil && *assignmentID != "" {
		var assignment models.Assignment
		if err := tx.First(&assignment, "id = ?", *assignmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: assignment %s", ErrNotFound, *assignmentID)
			}
			return nil, err
		}
		if assignment.UserID != userID || assignment.ImageID != imageID {
			return nil, fmt.Errorf("%w: assignment %s belongs to a different user/image pair",
				ErrConflict, assignment.ID)
		}
		// pending -> completed happens exactly once
		if assignment.Status != models.AssignmentPending {
			return nil, fmt.Errorf("%w: assignment %s is already completed",
				ErrConflict, assignment.ID)
		}
		return &assignment, nil
	}

	var assignment models.Assignment
	err := tx.Where("user_id = ? AND image_id = ? AND status = ?",
		userID, imageID, models.AssignmentPending).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

func incrementAnnotationCount(tx *gorm.DB, imageID string) error {
	return tx.Model(&models.Image{}).
		Where("id = ?", imageID).
		UpdateColumn("annotation_count", gorm.Expr("annotation_count + 1")).Error
}

func completeAssignment(tx *gorm.DB, assignment *models.Assignment, at time.Time) error {
	return tx.Model(assignment).Updates(map[string]interface{}{
		"status":       models.AssignmentCompleted,
		"completed_at": at,
	}).Error
}
