package annotation

import (
	"errors"
	"fmt"
	"time"

	"github.com/datacollect-labs/annoserve/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Selection is the outcome of picking the next image for a user: the image
// itself plus the pending assignment claiming it.
type Selection struct {
	Image      models.Image      `json:"image"`
	Assignment models.Assignment `json:"assignment"`
}

// SelectNext finds the next image the user has not covered yet and claims it
// with a pending assignment. An existing pending assignment is resumed
// instead of creating a duplicate, so calling twice without annotating is
// idempotent. Returns ErrNoneAvailable once every image is covered; that is
// the completion signal, not a failure.
func SelectNext(db *gorm.DB, userID string, opts Options) (*Selection, error) {
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return nil, err
	}

	var sel *Selection
	err := db.Transaction(func(tx *gorm.DB) error {
		// Resume an unfinished assignment before handing out new work.
		var pending models.Assignment
		err := tx.Where("user_id = ? AND status = ?", userID, models.AssignmentPending).
			Order("assigned_at, id").
			First(&pending).Error
		if err == nil {
			covered, err := imageCovered(tx, pending.ImageID, userID, opts)
			if err != nil {
				return err
			}
			if !covered {
				var img models.Image
				if err := tx.First(&img, "id = ?", pending.ImageID).Error; err != nil {
					return err
				}
				sel = &Selection{Image: img, Assignment: pending}
				return nil
			}
			// The claimed image was covered in the meantime (another
			// annotator in single-annotator mode); retire the stale claim
			// and fall through to fresh selection.
			if err := completeAssignment(tx, &pending, time.Now().UTC()); err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		img, err := nextUncoveredImage(tx, userID, opts)
		if err != nil {
			return err
		}

		assignment := models.Assignment{
			UserID:     userID,
			ImageID:    img.ID,
			Status:     models.AssignmentPending,
			AssignedAt: time.Now().UTC(),
		}
		// Conditional insert: the unique (user_id, image_id) index plus
		// ON CONFLICT DO NOTHING keeps concurrent requests from creating
		// duplicate pending assignments for the same pair.
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&assignment)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Where("user_id = ? AND image_id = ?", userID, img.ID).
				First(&assignment).Error; err != nil {
				return err
			}
		}

		sel = &Selection{Image: *img, Assignment: assignment}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sel, nil
}

// imageCovered reports whether the image already has a qualifying annotation
// under the given policy: one by this user, or by anyone in single-annotator
// mode. Mirrors the coverage filter in nextUncoveredImage.
func imageCovered(tx *gorm.DB, imageID, userID string, opts Options) (bool, error) {
	q := tx.Model(&models.Annotation{}).Where("image_id = ?", imageID)
	if !opts.SingleAnnotator {
		q = q.Where("user_id = ?", userID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// nextUncoveredImage walks images in identifier order and returns the first
// one the user still owes an annotation for. Identifier order keeps the
// traversal deterministic and repeatable.
func nextUncoveredImage(tx *gorm.DB, userID string, opts Options) (*models.Image, error) {
	annotated := tx.Model(&models.Annotation{}).Select("image_id")
	if !opts.SingleAnnotator {
		annotated = annotated.Where("user_id = ?", userID)
	}

	// Completed assignments without an annotation are explicit skips and
	// stay off the user's queue.
	skipped := tx.Model(&models.Assignment{}).
		Select("image_id").
		Where("user_id = ? AND status = ?", userID, models.AssignmentCompleted)

	var img models.Image
	err := tx.Where("id NOT IN (?)", annotated).
		Where("id NOT IN (?)", skipped).
		Order("id").
		First(&img).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoneAvailable
		}
		return nil, err
	}
	return &img, nil
}
