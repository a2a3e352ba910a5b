package todo

import (
	"net/http"
	"strconv"
	"todo_tracker/internal/auth"
	"todo_tracker/internal/response"

	"github.com/gin-gonic/gin"
)

type TodoController struct {
	service TodoServiceInterface
}

func NewTodoController(service TodoServiceInterface) *TodoController {
	return &TodoController{
		service: service,
	}
}

// RegisterRoutes mounts the todo endpoints on a group that already runs the
// auth middleware.
func (tc *TodoController) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", tc.CreateTodo)
	rg.GET("", tc.ListTodos)
	rg.GET("/:id", tc.GetTodo)
	rg.PUT("/:id", tc.UpdateTodo)
	rg.PATCH("/:id/toggle", tc.ToggleTodo)
	rg.DELETE("/:id", tc.DeleteTodo)
	rg.GET("/:id/activity", tc.GetActivity)
}

// CreateTodo handles todo creation
func (tc *TodoController) CreateTodo(c *gin.Context) {
	username, ok := callerUsername(c)
	if !ok {
		return
	}

	var req TodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	in, err := ValidateTodoRequest(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	todo, err := tc.service.Create(c.Request.Context(), username, in)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, ToTodoResponse(todo))
}

// ListTodos returns one page of the caller's todos
func (tc *TodoController) ListTodos(c *gin.Context) {
	username, ok := callerUsername(c)
	if !ok {
		return
	}

	filter, err := ParseListQuery(c.Request.URL.Query())
	if err != nil {
		response.Error(c, err)
		return
	}

	page, err := tc.service.List(c.Request.Context(), username, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ToPageResponse(page))
}

// GetTodo handles getting a todo by ID
func (tc *TodoController) GetTodo(c *gin.Context) {
	username, id, ok := callerAndID(c)
	if !ok {
		return
	}

	todo, err := tc.service.GetByID(c.Request.Context(), username, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ToTodoResponse(todo))
}

func (tc *TodoController) UpdateTodo(c *gin.Context) {
	username, id, ok := callerAndID(c)
	if !ok {
		return
	}

	var req TodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	in, err := ValidateTodoRequest(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	todo, err := tc.service.Update(c.Request.Context(), username, id, UpdateInput(in))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ToTodoResponse(todo))
}

func (tc *TodoController) ToggleTodo(c *gin.Context) {
	username, id, ok := callerAndID(c)
	if !ok {
		return
	}

	todo, err := tc.service.ToggleComplete(c.Request.Context(), username, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ToTodoResponse(todo))
}

func (tc *TodoController) DeleteTodo(c *gin.Context) {
	username, id, ok := callerAndID(c)
	if !ok {
		return
	}

	if err := tc.service.Delete(c.Request.Context(), username, id); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetActivity lists the recorded lifecycle events of a todo
func (tc *TodoController) GetActivity(c *gin.Context) {
	username, id, ok := callerAndID(c)
	if !ok {
		return
	}

	activities, err := tc.service.Activity(c.Request.Context(), username, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": ToActivityResponses(activities)})
}

func callerUsername(c *gin.Context) (string, bool) {
	username, err := auth.GetUsernameFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return "", false
	}
	return username, true
}

func callerAndID(c *gin.Context) (string, int64, bool) {
	username, ok := callerUsername(c)
	if !ok {
		return "", 0, false
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid todo ID")
		return "", 0, false
	}
	return username, id, true
}
