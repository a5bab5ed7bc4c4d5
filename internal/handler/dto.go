package handler

import (
	"time"

	"github.com/msomdec/modfusion-console/internal/domain"
)

// UserDTO is the JSON representation of a user.
type UserDTO struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	CreatedAt string  `json:"createdAt"`
	LastLogin *string `json:"lastLogin"`
	Avatar    string  `json:"avatar,omitempty"`
	Role      string  `json:"role"`
}

func toUserDTO(u *domain.User) UserDTO {
	dto := UserDTO{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		Role:      string(u.Role),
	}
	if u.LastLoginAt != nil {
		t := u.LastLoginAt.Format(time.RFC3339)
		dto.LastLogin = &t
	}
	if u.Avatar != "" {
		dto.Avatar = avatarURL(u.ID)
	}
	return dto
}

func toUserDTOs(users []domain.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i := range users {
		dtos[i] = toUserDTO(&users[i])
	}
	return dtos
}

func avatarURL(userID string) string {
	return "/api/users/" + userID + "/avatar"
}

// ActivityDTO is the JSON representation of a login or deletion log entry.
type ActivityDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	At        string `json:"at"`
}

func toActivityDTOs(entries []domain.ActivityEntry) []ActivityDTO {
	dtos := make([]ActivityDTO, len(entries))
	for i, e := range entries {
		dtos[i] = ActivityDTO{
			ID:        e.ID,
			UserID:    e.UserID,
			Email:     e.Email,
			FirstName: e.FirstName,
			LastName:  e.LastName,
			At:        e.At.Format(time.RFC3339),
		}
	}
	return dtos
}
