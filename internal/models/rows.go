package models

import (
	"time"

	"gorm.io/datatypes"
)

// Relational rows used by the PostgreSQL store. Nested breakdown data is kept
// in JSON columns so the attempt row stays immutable as a whole.

type QuestionRow struct {
	QuestionNumber int        `gorm:"primaryKey;autoIncrement:false"`
	QuestionType   string     `gorm:"not null"`
	Images         []ImageRow `gorm:"foreignKey:QuestionNumber;references:QuestionNumber;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (QuestionRow) TableName() string { return "design_test_questions" }

type ImageRow struct {
	ImageID        string `gorm:"primaryKey"`
	QuestionNumber int    `gorm:"index;not null"`
	Position       int    `gorm:"not null"`
	Src            string `gorm:"not null"`
	ActualScore    int    `gorm:"not null;check:actual_score BETWEEN 0 AND 2"`
	ImageType      string `gorm:"not null"`
	DisplayLabel   *string
	Filename       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ImageRow) TableName() string { return "images" }

type SupplementalRow struct {
	QuestionNumber  int            `gorm:"primaryKey;autoIncrement:false"`
	Kind            string         `gorm:"not null"`
	Prompt          string         `gorm:"not null"`
	CorrectOptionID string
	Options         datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (SupplementalRow) TableName() string { return "supplemental_questions" }

type AttemptRow struct {
	ID                  string         `gorm:"primaryKey;type:uuid"`
	SessionID           string         `gorm:"not null;uniqueIndex:idx_attempt_session_email"`
	ApplicantEmail      string         `gorm:"not null;uniqueIndex:idx_attempt_session_email;uniqueIndex:idx_attempt_email_number"`
	ApplicantName       string         `gorm:"not null"`
	AttemptNumber       int            `gorm:"not null;uniqueIndex:idx_attempt_email_number"`
	SubmittedAt         time.Time      `gorm:"not null"`
	SubmittedAtISO      string         `gorm:"column:submitted_at_iso"`
	OverallCloseness    float64        `gorm:"not null"`
	OverallClosenessPct float64        `gorm:"not null"`
	BaseCloseness       float64        `gorm:"not null"`
	MAE                 float64        `gorm:"column:mae;not null"`
	Band                string         `gorm:"not null"`
	BoostMultiplier     float64        `gorm:"not null"`
	ImageQuestions      datatypes.JSON `gorm:"type:jsonb"`
	ScenarioQuestion    datatypes.JSON `gorm:"type:jsonb"`
	RolePreference      datatypes.JSON `gorm:"type:jsonb"`
	Metadata            datatypes.JSON `gorm:"type:jsonb"`
}

func (AttemptRow) TableName() string { return "attempts" }

type ApplicantRow struct {
	Email        string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	AttemptCount int    `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ApplicantRow) TableName() string { return "applicants" }
