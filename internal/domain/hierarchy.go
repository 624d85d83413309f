package domain

import (
	"time"

	"github.com/google/uuid"
)

// EquipmentType enumerates the closed set of equipment categories.
type EquipmentType string

const (
	EquipmentTypeController EquipmentType = "controller"
	EquipmentTypeRobot      EquipmentType = "robot"
	EquipmentTypeConveyor   EquipmentType = "conveyor"
	EquipmentTypePress      EquipmentType = "press"
	EquipmentTypeWelder     EquipmentType = "welder"
	EquipmentTypeCNC        EquipmentType = "cnc"
	EquipmentTypeAGV        EquipmentType = "agv"
	EquipmentTypeOther      EquipmentType = "other"
)

// EquipmentTypes lists every valid equipment type in declaration order.
func EquipmentTypes() []EquipmentType {
	return []EquipmentType{
		EquipmentTypeController,
		EquipmentTypeRobot,
		EquipmentTypeConveyor,
		EquipmentTypePress,
		EquipmentTypeWelder,
		EquipmentTypeCNC,
		EquipmentTypeAGV,
		EquipmentTypeOther,
	}
}

// ValidEquipmentType reports whether value is a member of the enum.
func ValidEquipmentType(value string) bool {
	for _, t := range EquipmentTypes() {
		if string(t) == value {
			return true
		}
	}
	return false
}

// Site is the root of the containment chain. Names are globally unique.
type Site struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSite creates a site with a fresh identifier.
func NewSite(name string) Site {
	now := time.Now()
	return Site{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Cell belongs to exactly one site; (site, line_number) is unique.
type Cell struct {
	ID         uuid.UUID `json:"id"`
	SiteID     uuid.UUID `json:"site_id"`
	Name       string    `json:"name"`
	LineNumber int       `json:"line_number"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewCell creates a cell under the given site.
func NewCell(siteID uuid.UUID, name string, lineNumber int) Cell {
	now := time.Now()
	return Cell{
		ID:         uuid.New(),
		SiteID:     siteID,
		Name:       name,
		LineNumber: lineNumber,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Equipment belongs to exactly one cell; (cell, name) is unique.
type Equipment struct {
	ID            uuid.UUID     `json:"id"`
	CellID        uuid.UUID     `json:"cell_id"`
	Name          string        `json:"name"`
	EquipmentType EquipmentType `json:"equipment_type"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewEquipment creates equipment under the given cell.
func NewEquipment(cellID uuid.UUID, name string, equipmentType EquipmentType) Equipment {
	now := time.Now()
	return Equipment{
		ID:            uuid.New(),
		CellID:        cellID,
		Name:          name,
		EquipmentType: equipmentType,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Controller is the leaf of the hierarchy. TagID is globally unique, and
// IPAddress is globally unique when present.
type Controller struct {
	ID              uuid.UUID `json:"id"`
	EquipmentID     uuid.UUID `json:"equipment_id"`
	TagID           string    `json:"tag_id"`
	Description     string    `json:"description"`
	Make            string    `json:"make"`
	Model           string    `json:"model"`
	IPAddress       string    `json:"ip_address,omitempty"`
	FirmwareVersion string    `json:"firmware_version,omitempty"`
	CreatedBy       string    `json:"created_by"`
	UpdatedBy       string    `json:"updated_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewController creates a controller under the given equipment, stamping the
// acting user as both creator and updater.
func NewController(equipmentID uuid.UUID, tagID string, userID string) Controller {
	now := time.Now()
	return Controller{
		ID:          uuid.New(),
		EquipmentID: equipmentID,
		TagID:       tagID,
		CreatedBy:   userID,
		UpdatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
