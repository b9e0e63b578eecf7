package models

import (
	"encoding/json"
	"time"
)

// Band is the qualitative bucket derived from the overall closeness.
type Band string

const (
	BandExcellent Band = "Excellent"
	BandGood      Band = "Good"
	BandNeedsWork Band = "Needs Work"
)

// ApplicantInput is the applicant block of a submission request.
type ApplicantInput struct {
	Name         string  `json:"name" binding:"required,min=2"`
	Email        string  `json:"email" binding:"required,email"`
	Age          *int    `json:"age,omitempty" binding:"omitempty,min=13,max=120"`
	Role         *string `json:"role,omitempty" binding:"omitempty,max=120"`
	PortfolioURL *string `json:"portfolioUrl,omitempty" binding:"omitempty,max=240"`
}

// ResponseItem is one image rating.
type ResponseItem struct {
	ImageID       string `json:"imageId" binding:"required"`
	SelectedScore *int   `json:"selectedScore" binding:"required,min=0,max=2"`
}

// ChoiceItem is the option picked for a supplemental question.
type ChoiceItem struct {
	QuestionNumber int    `json:"questionNumber" binding:"required,min=1"`
	OptionID       string `json:"optionId" binding:"required"`
}

// SubmissionMetadata carries client timing hints. Unknown keys are kept in
// Raw and stored with the attempt.
type SubmissionMetadata struct {
	StartedAt   *string `json:"startedAt,omitempty"`
	SubmittedAt *string `json:"submittedAt,omitempty"`
	DurationMs  *int    `json:"durationMs,omitempty" binding:"omitempty,min=0"`
	UserAgent   *string `json:"userAgent,omitempty" binding:"omitempty,max=400"`

	Raw map[string]any `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the full object in Raw.
func (m *SubmissionMetadata) UnmarshalJSON(data []byte) error {
	type known SubmissionMetadata
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = SubmissionMetadata(k)
	m.Raw = raw
	return nil
}

// SubmissionRequest is the POST /submit body.
type SubmissionRequest struct {
	SessionID string              `json:"sessionId" binding:"required,min=6"`
	Applicant ApplicantInput      `json:"applicant"`
	Responses []ResponseItem      `json:"responses" binding:"required,min=1,dive"`
	Choices   []ChoiceItem        `json:"choices" binding:"omitempty,dive"`
	Metadata  *SubmissionMetadata `json:"metadata,omitempty"`
}

// Submission is the scorer's view of a request: responses keyed by image id,
// choices keyed by question number. Later duplicates win.
type Submission struct {
	SessionID string
	Applicant ApplicantInput
	Responses map[string]int
	Choices   map[int]string
	Metadata  map[string]any
}

// ToSubmission flattens the request lists into lookup maps.
func (r *SubmissionRequest) ToSubmission() Submission {
	s := Submission{
		SessionID: r.SessionID,
		Applicant: r.Applicant,
		Responses: make(map[string]int, len(r.Responses)),
		Choices:   make(map[int]string, len(r.Choices)),
	}
	for _, item := range r.Responses {
		if item.SelectedScore != nil {
			s.Responses[item.ImageID] = *item.SelectedScore
		}
	}
	for _, c := range r.Choices {
		s.Choices[c.QuestionNumber] = c.OptionID
	}
	if r.Metadata != nil {
		s.Metadata = r.Metadata.Raw
	}
	return s
}

// ImageResult is the per-image part of the stored breakdown.
type ImageResult struct {
	ImageID       string   `json:"imageId" bson:"imageId"`
	SelectedScore *int     `json:"selectedScore" bson:"selectedScore"`
	ActualScore   *int     `json:"actualScore" bson:"actualScore"`
	Error         *float64 `json:"error" bson:"error"`
	Closeness     *float64 `json:"closeness" bson:"closeness"`
	Excluded      bool     `json:"excluded" bson:"excluded"`
}

// QuestionResult aggregates the included images of one question. Closeness
// and MAE are nil when every image was excluded.
type QuestionResult struct {
	QuestionNumber int           `json:"questionNumber" bson:"questionNumber"`
	QuestionType   QuestionType  `json:"questionType" bson:"questionType"`
	Closeness      *float64      `json:"closeness" bson:"closeness"`
	MAE            *float64      `json:"mae" bson:"mae"`
	Images         []ImageResult `json:"images" bson:"images"`
}

// ScenarioSummary records how the selection question was scored.
type ScenarioSummary struct {
	QuestionNumber int     `json:"questionNumber" bson:"questionNumber"`
	SelectedOption string  `json:"selectedOption" bson:"selectedOption"`
	SelectedLabel  string  `json:"selectedLabel" bson:"selectedLabel"`
	SelectedValue  int     `json:"selectedValue" bson:"selectedValue"`
	CorrectValue   int     `json:"correctValue" bson:"correctValue"`
	Error          float64 `json:"error" bson:"error"`
	Closeness      float64 `json:"closeness" bson:"closeness"`
}

// RoleSummary records the chosen role preference and its boost.
type RoleSummary struct {
	QuestionNumber int     `json:"questionNumber" bson:"questionNumber"`
	SelectedOption string  `json:"selectedOption" bson:"selectedOption"`
	SelectedLabel  string  `json:"selectedLabel" bson:"selectedLabel"`
	Boost          float64 `json:"boost" bson:"boost"`
}

// Attempt is one persisted scoring outcome. It is written once and never updated.
type Attempt struct {
	ID                  string           `json:"id" bson:"attemptId"`
	ApplicantEmail      string           `json:"applicantEmail" bson:"applicantEmail"`
	ApplicantName       string           `json:"applicantName" bson:"applicantName"`
	AttemptNumber       int              `json:"attemptNumber" bson:"attemptNumber"`
	SessionID           string           `json:"sessionId" bson:"sessionId"`
	SubmittedAt         time.Time        `json:"submittedAt" bson:"submittedAt"`
	SubmittedAtISO      string           `json:"submittedAtIso" bson:"submittedAtIso"`
	OverallCloseness    float64          `json:"overallCloseness" bson:"overallCloseness"`
	OverallClosenessPct float64          `json:"overallClosenessPct" bson:"overallClosenessPct"`
	BaseCloseness       float64          `json:"baseCloseness" bson:"baseCloseness"`
	MAE                 float64          `json:"mae" bson:"mae"`
	Band                Band             `json:"band" bson:"band"`
	ImageQuestions      []QuestionResult `json:"imageQuestions" bson:"imageQuestions"`
	ScenarioQuestion    ScenarioSummary  `json:"scenarioQuestion" bson:"scenarioQuestion"`
	RolePreference      RoleSummary      `json:"rolePreference" bson:"rolePreference"`
	BoostMultiplier     float64          `json:"boostMultiplier" bson:"boostMultiplier"`
	Metadata            map[string]any   `json:"metadata" bson:"metadata"`
}

// Result is the user-facing summary of the attempt.
func (a *Attempt) Result() SubmissionResult {
	return SubmissionResult{
		Applicant:           ApplicantSummary{Name: a.ApplicantName, Email: a.ApplicantEmail},
		AttemptNumber:       a.AttemptNumber,
		SessionID:           a.SessionID,
		OverallCloseness:    a.OverallCloseness,
		OverallClosenessPct: a.OverallClosenessPct,
		Band:                a.Band,
	}
}

// Applicant is keyed by lower-cased email.
type Applicant struct {
	Email        string    `json:"email" bson:"email"`
	Name         string    `json:"name" bson:"name"`
	AttemptCount int       `json:"attemptCount" bson:"attemptCount"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ApplicantSummary identifies the applicant in a result.
type ApplicantSummary struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SubmissionResult is the POST /submit response body.
type SubmissionResult struct {
	Applicant           ApplicantSummary `json:"applicant"`
	AttemptNumber       int              `json:"attemptNumber"`
	SessionID           string           `json:"sessionId"`
	OverallCloseness    float64          `json:"overallCloseness"`
	OverallClosenessPct float64          `json:"overallClosenessPct"`
	Band                Band             `json:"band"`
}
