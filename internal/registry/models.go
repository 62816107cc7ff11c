package registry

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Issuance status values
const (
	StatusIssued = "issued"
	StatusFailed = "failed"
)

// Issuance is one processed roster row of a run, successful or not
type Issuance struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RunID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"run_id"`
	Row        int            `gorm:"column:row_number;not null" json:"row"`
	Student    string         `json:"student"`
	Card       string         `gorm:"index" json:"card"`
	Course     string         `json:"course"`
	Sector     string         `json:"sector"`
	Months     int            `json:"months"`
	Hours      int            `json:"hours"`
	Year       int            `json:"year"`
	Status     string         `gorm:"not null" json:"status"`
	Stage      string         `json:"stage,omitempty"`
	Error      string         `json:"error,omitempty"`
	OutputPath string         `json:"output_path,omitempty"`
	ObjectURL  string         `json:"object_url,omitempty"`
	Values     datatypes.JSON `gorm:"type:jsonb" json:"values"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TableName pins the table name
func (Issuance) TableName() string {
	return "certificate_issuances"
}
