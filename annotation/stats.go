package annotation

import (
	"errors"
	"fmt"
	"math"

	"github.com/datacollect-labs/annoserve/models"
	"gorm.io/gorm"
)

// UserProgress is one user's slice of the workload.
type UserProgress struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Completed int64  `json:"completed"`
	Remaining int64  `json:"remaining"`
}

// Stats are the aggregate progress numbers shown on the dashboard. All counts
// derive from current table state on every call.
type Stats struct {
	TotalImages     int64          `json:"total_images"`
	AnnotatedImages int64          `json:"annotated_images"`
	ApprovedImages  int64          `json:"approved_images"`
	ReportedImages  int64          `json:"reported_images"`
	RemainingImages int64          `json:"remaining_images"`
	ProgressPercent float64        `json:"progress_percentage"`
	PerUser         []UserProgress `json:"per_user"`
}

// GetStats computes the aggregate progress counts. An image counts as
// annotated once it has at least one non-reported annotation; reported images
// are tracked separately and excluded from the approved aggregate.
func GetStats(db *gorm.DB) (*Stats, error) {
	stats := &Stats{PerUser: []UserProgress{}}

	if err := db.Model(&models.Image{}).Count(&stats.TotalImages).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Annotation{}).
		Where("is_reported = ?", false).
		Distinct("image_id").
		Count(&stats.AnnotatedImages).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Annotation{}).
		Where("is_approved = ? AND is_reported = ?", true, false).
		Distinct("image_id").
		Count(&stats.ApprovedImages).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Annotation{}).
		Where("is_reported = ?", true).
		Distinct("image_id").
		Count(&stats.ReportedImages).Error; err != nil {
		return nil, err
	}

	stats.RemainingImages = stats.TotalImages - stats.AnnotatedImages
	if stats.TotalImages > 0 {
		pct := float64(stats.AnnotatedImages) / float64(stats.TotalImages) * 100
		stats.ProgressPercent = math.Round(pct*10) / 10
	}

	var rows []struct {
		UserID    string
		Username  string
		Completed int64
	}
	err := db.Table("users").
		Select("users.id AS user_id, users.username AS username, COUNT(DISTINCT annotations.image_id) AS completed").
		Joins("LEFT JOIN annotations ON annotations.user_id = users.id AND annotations.is_reported = ?", false).
		Group("users.id, users.username").
		Order("users.username").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.PerUser = append(stats.PerUser, UserProgress{
			UserID:    row.UserID,
			Username:  row.Username,
			Completed: row.Completed,
			Remaining: stats.TotalImages - row.Completed,
		})
	}

	return stats, nil
}

// GetUserProgress reports completed/remaining counts for a single user.
func GetUserProgress(db *gorm.DB, userID string) (*UserProgress, error) {
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return nil, err
	}

	var total int64
	if err := db.Model(&models.Image{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var completed int64
	if err := db.Model(&models.Annotation{}).
		Where("user_id = ? AND is_reported = ?", userID, false).
		Distinct("image_id").
		Count(&completed).Error; err != nil {
		return nil, err
	}

	return &UserProgress{
		UserID:    user.ID,
		Username:  user.Username,
		Completed: completed,
		Remaining: total - completed,
	}, nil
}
