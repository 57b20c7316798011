package models

// Dispatcher represents a human operator who claims and resolves alerts
type Dispatcher struct {
	BaseModel
	Name     string `gorm:"type:varchar(100);not null" json:"name"`
	Username string `gorm:"type:varchar(50);unique;not null" json:"username"`
	Password string `gorm:"type:varchar(100);not null" json:"-"`
	Phone    string `gorm:"type:varchar(20)" json:"phone"`

	Responds []Respond `gorm:"foreignKey:DispatcherID" json:"responds,omitempty"`
}

// Admin represents a system administrator account
type Admin struct {
	BaseModel
	Username string `gorm:"type:varchar(50);unique;not null" json:"username"`
	Password string `gorm:"type:varchar(100);not null" json:"-"`
	Email    string `gorm:"type:varchar(100)" json:"email"`
	Phone    string `gorm:"type:varchar(20)" json:"phone"`
}
