package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMissing = errors.New("thing not found")

func TestFromError(t *testing.T) {
	app := fiber.New()
	app.Get("/mapped", func(c *fiber.Ctx) error {
		return FromError(c, fmt.Errorf("lookup: %w", errMissing), On(errMissing, fiber.StatusNotFound))
	})
	app.Get("/matched", func(c *fiber.Ctx) error {
		return FromError(c, errors.New("upstream"), When(func(error) bool { return true }, fiber.StatusBadGateway))
	})
	app.Get("/unmapped", func(c *fiber.Ctx) error {
		return FromError(c, errors.New("boom"), On(errMissing, fiber.StatusNotFound))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/mapped", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	var body ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "lookup: thing not found", body.Error.Message)
	assert.Equal(t, fiber.StatusNotFound, body.Error.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/matched", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/unmapped", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestSuccessCreated(t *testing.T) {
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		return SuccessCreated(c, "Created", fiber.Map{"id": 1}, nil)
	})
	resp, err := app.Test(httptest.NewRequest("POST", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Created", body["message"])
}
