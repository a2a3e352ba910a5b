package user

import (
	"net/http"
	"strings"
	"todo_tracker/internal/response"
	"todo_tracker/internal/validation"

	"github.com/gin-gonic/gin"
)

type RegisterRequest struct {
	Username string  `json:"username" validate:"notblank,min=3,max=50"`
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required,min=6,maxbytes=72"`
	Fullname *string `json:"fullname" validate:"omitempty,max=255"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type AuthResponse struct {
	Token        string `json:"token"`
	TokenType    string `json:"tokenType"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	UserID       int64  `json:"userId"`
	Username     string `json:"username"`
}

// ValidateRegisterRequest trims the identifiers and checks every field.
func ValidateRegisterRequest(req *RegisterRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Fullname != nil {
		trimmed := strings.TrimSpace(*req.Fullname)
		req.Fullname = &trimmed
		if trimmed == "" {
			req.Fullname = nil
		}
	}
	return validation.Struct(req)
}

func ValidateLoginRequest(req *LoginRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	return validation.Struct(req)
}

func ToAuthResponse(result *AuthResult) AuthResponse {
	return AuthResponse{
		Token:        result.Token,
		TokenType:    "Bearer",
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		UserID:       result.UserID,
		Username:     result.Username,
	}
}

type UserController struct {
	userService UserServiceInterface
}

func NewUserController(userService UserServiceInterface) *UserController {
	return &UserController{
		userService: userService,
	}
}

// Register handles user registration
func (a *UserController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	if err := ValidateRegisterRequest(&req); err != nil {
		response.Error(c, err)
		return
	}

	result, err := a.userService.Register(c.Request.Context(), RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Fullname: req.Fullname,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, ToAuthResponse(result))
}

// Login handles user login and returns JWT tokens
func (a *UserController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	if err := ValidateLoginRequest(&req); err != nil {
		response.Error(c, err)
		return
	}

	result, err := a.userService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ToAuthResponse(result))
}

// RefreshToken exchanges a refresh token for a new token pair
func (a *UserController) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	if err := validation.Struct(&req); err != nil {
		response.Error(c, err)
		return
	}

	result, err := a.userService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ToAuthResponse(result))
}
