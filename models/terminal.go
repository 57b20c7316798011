package models

// TerminalStatus represents the operational status of a field terminal
type TerminalStatus string

const (
	TerminalStatusOnline   TerminalStatus = "online"
	TerminalStatusOffline  TerminalStatus = "offline"
	TerminalStatusAlerting TerminalStatus = "alerting"
)

// Terminal represents a deployed LoRa field terminal
type Terminal struct {
	BaseModel
	Name          string         `gorm:"type:varchar(100)" json:"name"`
	DevEUI        string         `gorm:"type:varchar(32);unique;not null" json:"dev_eui"` // radio network device identifier
	Location      string         `gorm:"type:varchar(150)" json:"location"`
	Status        TerminalStatus `gorm:"type:varchar(20);default:'offline'" json:"status"`
	FocalPersonID *string        `gorm:"type:varchar(10)" json:"focal_person_id,omitempty"`

	// Relations
	FocalPerson *FocalPerson `gorm:"foreignKey:FocalPersonID" json:"focal_person,omitempty"`
	Alerts      []Alert      `gorm:"foreignKey:TerminalID" json:"alerts,omitempty"`
}

// FocalPerson represents the community contact responsible for a terminal
type FocalPerson struct {
	BaseModel
	Name             string  `gorm:"type:varchar(100);not null" json:"name"`
	Phone            string  `gorm:"type:varchar(20)" json:"phone"`
	CommunityGroupID *string `gorm:"type:varchar(10)" json:"community_group_id,omitempty"`

	CommunityGroup *CommunityGroup `gorm:"foreignKey:CommunityGroupID" json:"community_group,omitempty"`
}

// CommunityGroup represents a flood-prone community served by terminals
type CommunityGroup struct {
	BaseModel
	Name     string `gorm:"type:varchar(100);not null" json:"name"`
	Barangay string `gorm:"type:varchar(100)" json:"barangay"`
}
