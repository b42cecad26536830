package scoredb

import (
	"github.com/cyclopcam/dbh"

	"github.com/rokm/macvi-usv-odce-toolkit/pkg/report"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// Run is one recorded evaluation of a method against the dataset.
type Run struct {
	BaseModel
	Method    string                        `json:"method"`
	CreatedAt dbh.IntTime                   `json:"createdAt"`
	FAvg      float64                       `json:"fAvg"`
	FSetup1   float64                       `json:"fSetup1"`
	FSetup2   float64                       `json:"fSetup2"`
	FSetup3   float64                       `json:"fSetup3"`
	Report    *dbh.JSONField[report.Report] `json:"report" gorm:"default:null"` // Full per-bucket F scores
}
