//go:build integration

package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"todo_tracker/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodo_CRUDAndOwnership(t *testing.T) {
	env := SetupTestEnv(t)
	defer env.Cleanup(t)

	_, aliceToken := env.RegisterUser(t, "alice")
	_, bobToken := env.RegisterUser(t, "bob")

	w, created := env.Do(t, http.MethodPost, "/todos", aliceToken, map[string]string{
		"title":       "Buy milk",
		"description": "two litres",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "MEDIUM", created["priority"])
	assert.Equal(t, false, created["completed"])
	id := int64(created["id"].(float64))
	path := fmt.Sprintf("/todos/%d", id)

	t.Run("RequiresToken", func(t *testing.T) {
		w, _ := env.Do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("OwnerCanRead_AndResultIsCached", func(t *testing.T) {
		w, resp := env.Do(t, http.MethodGet, path, aliceToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Buy milk", resp["title"])

		exists, err := env.RedisClient.Exists(context.Background(), cache.TodoKey(id)).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)
	})

	t.Run("OtherUserIsForbidden", func(t *testing.T) {
		for _, call := range []struct{ method, path string }{
			{http.MethodGet, path},
			{http.MethodPut, path},
			{http.MethodPatch, path + "/toggle"},
			{http.MethodDelete, path},
		} {
			w, _ := env.Do(t, call.method, call.path, bobToken, map[string]string{"title": "hijack"})
			assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", call.method, call.path)
		}
	})

	t.Run("MissingIsNotFound", func(t *testing.T) {
		w, _ := env.Do(t, http.MethodGet, "/todos/999999", aliceToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("UpdateKeepsOmittedDescription", func(t *testing.T) {
		w, resp := env.Do(t, http.MethodPut, path, aliceToken, map[string]string{"title": "Buy oat milk", "priority": "high"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Buy oat milk", resp["title"])
		assert.Equal(t, "two litres", resp["description"])
		assert.Equal(t, "HIGH", resp["priority"])

		w, resp = env.Do(t, http.MethodPut, path, aliceToken, map[string]string{"title": "Buy oat milk", "description": ""})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "", resp["description"])
		assert.Equal(t, "HIGH", resp["priority"])
	})

	t.Run("ToggleTwice", func(t *testing.T) {
		w, first := env.Do(t, http.MethodPatch, path+"/toggle", aliceToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, first["completed"])

		w, second := env.Do(t, http.MethodPatch, path+"/toggle", aliceToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, second["completed"])
		firstAt, err := time.Parse(time.RFC3339Nano, first["updatedAt"].(string))
		require.NoError(t, err)
		secondAt, err := time.Parse(time.RFC3339Nano, second["updatedAt"].(string))
		require.NoError(t, err)
		assert.True(t, secondAt.After(firstAt))
	})

	t.Run("BlankTitleRejected", func(t *testing.T) {
		w, resp := env.Do(t, http.MethodPost, "/todos", aliceToken, map[string]string{"title": "  "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, resp, "details")
	})

	t.Run("DeleteThenNotFound", func(t *testing.T) {
		w, _ := env.Do(t, http.MethodDelete, path, aliceToken, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w, _ = env.Do(t, http.MethodGet, path, aliceToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestTodo_ListFiltersAndPagination(t *testing.T) {
	env := SetupTestEnv(t)
	defer env.Cleanup(t)

	_, aliceToken := env.RegisterUser(t, "alice")
	_, bobToken := env.RegisterUser(t, "bob")

	create := func(token, title, priority string, complete bool) {
		w, resp := env.Do(t, http.MethodPost, "/todos", token, map[string]string{"title": title, "priority": priority})
		require.Equal(t, http.StatusCreated, w.Code)
		if complete {
			w, _ = env.Do(t, http.MethodPatch, fmt.Sprintf("/todos/%d/toggle", int64(resp["id"].(float64))), token, nil)
			require.Equal(t, http.StatusOK, w.Code)
		}
	}

	create(aliceToken, "a1", "HIGH", true)
	create(aliceToken, "a2", "HIGH", false)
	create(aliceToken, "a3", "LOW", true)
	create(aliceToken, "a4", "HIGH", true)
	create(bobToken, "b1", "HIGH", true)

	w, resp := env.Do(t, http.MethodGet, "/todos?completed=true&priority=HIGH", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), resp["total"])
	items := resp["items"].([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, "a4", items[0].(map[string]interface{})["title"])
	assert.Equal(t, "a1", items[1].(map[string]interface{})["title"])

	w, resp = env.Do(t, http.MethodGet, "/todos?page=1&size=3", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), resp["total"])
	assert.Equal(t, float64(2), resp["totalPages"])
	assert.Len(t, resp["items"], 1)

	w, _ = env.Do(t, http.MethodGet, "/todos?size=500", aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
