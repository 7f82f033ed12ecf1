package models

import (
	"time"

	"github.com/yeremiapane/delivery-app/pricing"
)

type Restaurant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uint      `gorm:"not null;uniqueIndex" json:"owner_id"`
	Owner     User      `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Address   string    `gorm:"type:text" json:"address"`
	Lat       float64   `gorm:"not null;default:0" json:"lat"`
	Lng       float64   `gorm:"not null;default:0" json:"lng"`
	IsOpen    bool      `gorm:"not null;default:true" json:"is_open"`
	ImageURL  string    `gorm:"type:varchar(255)" json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r Restaurant) Location() pricing.Point {
	return pricing.Point{Lat: r.Lat, Lng: r.Lng}
}

type Dish struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RestaurantID uint       `gorm:"not null;index" json:"restaurant_id"`
	Restaurant   Restaurant `gorm:"foreignKey:RestaurantID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Name         string     `gorm:"type:varchar(255);not null" json:"name"`
	Description  string     `gorm:"type:text" json:"description"`
	Price        float64    `gorm:"type:decimal(10,2);not null" json:"price"`
	ImagePath    string     `gorm:"type:varchar(255)" json:"image_path"`
	Available    bool       `gorm:"not null;default:true" json:"available"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
