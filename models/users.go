package models

import "time"

// Account roles. Customer, restaurant and rider are the three order actors.
const (
	RoleCustomer   = "customer"
	RoleRestaurant = "restaurant"
	RoleRider      = "rider"
	RoleAdmin      = "admin"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255);unique;not null" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	Role      string    `gorm:"type:varchar(20);not null;index" json:"role"`
	Phone     string    `gorm:"type:varchar(30)" json:"phone"`
	AvatarURL string    `gorm:"type:varchar(255)" json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidRole reports whether role can be self-registered.
func ValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleRestaurant, RoleRider:
		return true
	}
	return false
}
