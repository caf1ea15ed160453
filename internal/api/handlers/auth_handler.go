package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/claimsmart/claimsmart-backend/internal/core"
	"github.com/claimsmart/claimsmart-backend/internal/models"
)

type AuthHandler struct {
	store     core.ClaimStore
	jwtSecret []byte
	log       *zap.Logger
}

func NewAuthHandler(store core.ClaimStore, jwtSecret string, log *zap.Logger) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: []byte(jwtSecret), log: log}
}

type signupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.FullName) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "full_name, email and password are required")
		return
	}

	role := models.Role(req.Role)
	if role == "" {
		role = models.RoleClaimant
	}
	if role != models.RoleClaimant && role != models.RoleInsurer {
		Error(w, http.StatusBadRequest, "role must be claimant or insurer")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		Error(w, http.StatusInternalServerError, "could not hash password")
		return
	}

	user := &models.User{
		ID:           uuid.NewString(),
		FullName:     strings.TrimSpace(req.FullName),
		Email:        strings.TrimSpace(req.Email),
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		Error(w, http.StatusConflict, "user exists")
		return
	}

	token, err := h.generateJWT(user)
	if err != nil {
		Error(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	JSON(w, http.StatusCreated, map[string]string{"token": token})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid body")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || user == nil ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateJWT(user)
	if err != nil {
		Error(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"token": token})
}

// generateJWT creates a signed token carrying the user id and role claims.
func (h *AuthHandler) generateJWT(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role":    string(user.Role),
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(h.jwtSecret)
}
