package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/datacollect-labs/annoserve/auth"
	"github.com/datacollect-labs/annoserve/database"
	"github.com/datacollect-labs/annoserve/models"
	"github.com/datacollect-labs/annoserve/router"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")

	path := t.TempDir() + "/test.db"
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "Failed to open database")
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Image{},
		&models.Assignment{},
		&models.Annotation{},
	))
	database.SetDB(db)

	auth.SetupAuthService()

	app := fiber.New()
	router.SetupRoutes(app)
	return app, db
}

func seedUser(t *testing.T, db *gorm.DB, username, password, role string) models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	user := models.User{Username: username, PasswordHash: hash, Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedImages(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, db.Create(&models.Image{
			ID:        fmt.Sprintf("%06d", i),
			Source:    "test",
			ImagePath: fmt.Sprintf("https://example.com/img_%d.jpg", i),
			ImageURL:  fmt.Sprintf("https://example.com/img_%d.jpg", i),
		}).Error)
	}
}

func login(t *testing.T, app *fiber.App, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode, "login should succeed")

	var env envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, payload interface{}) (*http.Response, envelope) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := app.Test(req)
	require.NoError(t, err)

	var env envelope
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return res, env
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	app, db := setupApp(t)
	seedUser(t, db, "alice", "secret", models.RoleAnnotator)

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestWorkflowEndpointsRequireAuth(t *testing.T) {
	app, _ := setupApp(t)

	for _, path := range []string{"/api/random_image", "/api/stats", "/api/export/all"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		res, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode, path)
	}
}

func TestAnnotationWorkflowOverHTTP(t *testing.T) {
	app, db := setupApp(t)
	seedUser(t, db, "alice", "secret", models.RoleAnnotator)
	seedImages(t, db, 2)

	token := login(t, app, "alice", "secret")

	// First image off the queue.
	res, env := doJSON(t, app, http.MethodGet, "/api/random_image", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var selection struct {
		ID           string `json:"id"`
		AssignmentID string `json:"assignment_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &selection))
	assert.Equal(t, "000000", selection.ID)
	require.NotEmpty(t, selection.AssignmentID)

	// Asking again without annotating resumes the same assignment.
	_, env = doJSON(t, app, http.MethodGet, "/api/random_image", token, nil)
	var resumed struct {
		ID           string `json:"id"`
		AssignmentID string `json:"assignment_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resumed))
	assert.Equal(t, selection.AssignmentID, resumed.AssignmentID)

	// Submit the Q&A pair.
	res, _ = doJSON(t, app, http.MethodPost, "/api/annotate", token, map[string]interface{}{
		"image_id":      selection.ID,
		"assignment_id": selection.AssignmentID,
		"question":      "What color?",
		"answer":        "Red",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)

	var img models.Image
	require.NoError(t, db.First(&img, "id = ?", selection.ID).Error)
	assert.Equal(t, 1, img.AnnotationCount)

	// Next image, then report it.
	_, env = doJSON(t, app, http.MethodGet, "/api/random_image", token, nil)
	var next struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &next))
	assert.Equal(t, "000001", next.ID)

	res, _ = doJSON(t, app, http.MethodPost, "/api/report", token, map[string]interface{}{
		"image_id": next.ID,
		"reason":   "will not load",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)

	// Queue exhausted: completion signal, not an error.
	res, env = doJSON(t, app, http.MethodGet, "/api/random_image", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var done struct {
		AllComplete bool `json:"all_complete"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &done))
	assert.True(t, done.AllComplete)
}

func TestAnnotateValidationErrors(t *testing.T) {
	app, db := setupApp(t)
	seedUser(t, db, "alice", "secret", models.RoleAnnotator)
	seedImages(t, db, 1)
	token := login(t, app, "alice", "secret")

	res, _ := doJSON(t, app, http.MethodPost, "/api/annotate", token, map[string]interface{}{
		"image_id": "000000",
		"question": "   ",
		"answer":   "",
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = doJSON(t, app, http.MethodPost, "/api/annotate", token, map[string]interface{}{
		"image_id": "999999",
		"question": "Q",
		"answer":   "A",
	})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	app, db := setupApp(t)
	seedUser(t, db, "alice", "secret", models.RoleAnnotator)
	seedImages(t, db, 2)
	token := login(t, app, "alice", "secret")

	doJSON(t, app, http.MethodPost, "/api/annotate", token, map[string]interface{}{
		"image_id": "000000",
		"question": "Q",
		"answer":   "A",
	})

	res, env := doJSON(t, app, http.MethodGet, "/api/stats", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var stats struct {
		TotalImages     int64 `json:"total_images"`
		AnnotatedImages int64 `json:"annotated_images"`
		RemainingImages int64 `json:"remaining_images"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.EqualValues(t, 2, stats.TotalImages)
	assert.EqualValues(t, 1, stats.AnnotatedImages)
	assert.EqualValues(t, 1, stats.RemainingImages)
}

func TestExportAllRepeatsByteIdentical(t *testing.T) {
	app, db := setupApp(t)
	seedUser(t, db, "alice", "secret", models.RoleAnnotator)
	seedImages(t, db, 2)
	token := login(t, app, "alice", "secret")

	doJSON(t, app, http.MethodPost, "/api/annotate", token, map[string]interface{}{
		"image_id": "000000",
		"question": "Q",
		"answer":   "A",
	})

	fetch := func() []byte {
		req := httptest.NewRequest(http.MethodGet, "/api/export/all", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		res, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		return body
	}

	first := fetch()
	second := fetch()
	assert.Equal(t, first, second, "repeated exports must be byte-identical")

	// Bare array, every image present.
	var dump []struct {
		Image models.Image `json:"image"`
	}
	require.NoError(t, json.Unmarshal(first, &dump))
	assert.Len(t, dump, 2)
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	app, db := setupApp(t)
	seedUser(t, db, "alice", "secret", models.RoleAnnotator)
	seedUser(t, db, "root", "rootpw", models.RoleAdmin)

	annotatorToken := login(t, app, "alice", "secret")
	res, _ := doJSON(t, app, http.MethodPost, "/api/user/", annotatorToken, map[string]string{
		"username": "carol",
		"password": "pw",
	})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	adminToken := login(t, app, "root", "rootpw")
	res, _ = doJSON(t, app, http.MethodPost, "/api/user/", adminToken, map[string]string{
		"username": "carol",
		"password": "pw",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)

	var carol models.User
	require.NoError(t, db.First(&carol, "username = ?", "carol").Error)
	assert.Equal(t, models.RoleAnnotator, carol.Role)
}

func TestCreateUserDuplicateUsernameConflicts(t *testing.T) {
	app, db := setupApp(t)
	seedUser(t, db, "root", "rootpw", models.RoleAdmin)
	seedUser(t, db, "carol", "pw", models.RoleAnnotator)

	adminToken := login(t, app, "root", "rootpw")
	res, _ := doJSON(t, app, http.MethodPost, "/api/user/", adminToken, map[string]string{
		"username": "carol",
		"password": "other",
	})
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}
