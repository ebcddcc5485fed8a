package model

import "time"

// Network is a mobile network operator supported by the delivery provider.
type Network string

const (
	NetworkMTN    Network = "MTN"
	NetworkGlo    Network = "GLO"
	NetworkAirtel Network = "AIRTEL"
)

// DataPlan is a priced data bundle from the provider catalog. AmigoPlanID is
// the provider-side identifier sent on delivery.
type DataPlan struct {
	ID          int64     `json:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	Network     Network   `json:"network"      gorm:"column:network;not null"`
	Data        string    `json:"data"         gorm:"column:data;not null"`
	Validity    string    `json:"validity"     gorm:"column:validity;not null"`
	Price       int64     `json:"price"        gorm:"column:price;not null"`
	AmigoPlanID int64     `json:"-"            gorm:"column:amigo_plan_id;not null"`
	CreatedAt   time.Time `json:"created_at"   gorm:"column:created_at;autoCreateTime"`
}

func (DataPlan) TableName() string { return "data_plans" }

type Product struct {
	ID          int64     `json:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	Name        string    `json:"name"        gorm:"column:name;not null"`
	Description string    `json:"description" gorm:"column:description"`
	Price       int64     `json:"price"       gorm:"column:price;not null"`
	Image       string    `json:"image"       gorm:"column:image"`
	InStock     bool      `json:"in_stock"    gorm:"column:in_stock;not null;default:true"`
	CreatedAt   time.Time `json:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (Product) TableName() string { return "products" }
