// Package scoring computes the Design Sense closeness score. It performs no I/O.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"designsense-go/internal/models"
)

const (
	// SelectionQuestionNumber is the scenario question folded into the overall mean.
	SelectionQuestionNumber = 9
	// BoostQuestionNumber is the role-preference question applied as a multiplier.
	BoostQuestionNumber = 10

	excellentThreshold = 0.85
	goodThreshold      = 0.70
	maxError           = 2.0
)

var (
	ErrInvalidOption               = errors.New("invalid option")
	ErrSupplementalMetadataMissing = errors.New("supplemental metadata missing")
)

// QuestionError ties a scoring failure to a supplemental question.
type QuestionError struct {
	QuestionNumber int
	Err            error
}

func (e *QuestionError) Error() string {
	return fmt.Sprintf("question %d: %v", e.QuestionNumber, e.Err)
}

func (e *QuestionError) Unwrap() error { return e.Err }

// Input is everything needed to score one submission.
type Input struct {
	Questions    []models.Question
	Catalog      map[string]models.Image
	Supplemental map[int]models.SupplementalQuestion
	Responses    map[string]int
	Choices      map[int]string
}

// Breakdown is the full scoring outcome.
type Breakdown struct {
	Questions           []models.QuestionResult
	Scenario            models.ScenarioSummary
	Role                models.RoleSummary
	BaseCloseness       float64
	MAE                 float64
	BoostMultiplier     float64
	OverallCloseness    float64
	OverallClosenessPct float64
	Band                models.Band
}

// ImageCloseness returns the absolute error between a selected and an actual
// rating and the closeness derived from it.
func ImageCloseness(selected, actual int) (float64, float64) {
	e := math.Abs(float64(selected - actual))
	return e, 1 - e/maxError
}

// BandFor buckets an overall closeness value.
func BandFor(score float64) models.Band {
	switch {
	case score >= excellentThreshold:
		return models.BandExcellent
	case score >= goodThreshold:
		return models.BandGood
	default:
		return models.BandNeedsWork
	}
}

// Percent renders a closeness value as a percentage with one decimal.
func Percent(score float64) float64 {
	return math.Round(score*1000) / 10
}

// Mean returns 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// Score rates every image of every question, folds in the scenario question
// as one more item, applies the role-preference boost and bands the result.
func Score(in Input) (*Breakdown, error) {
	questions := make([]models.Question, len(in.Questions))
	copy(questions, in.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].QuestionNumber < questions[j].QuestionNumber
	})

	var allCloseness, allErrors []float64
	results := make([]models.QuestionResult, 0, len(questions))
	for _, q := range questions {
		result, closeness, errs := scoreQuestion(q, in.Catalog, in.Responses)
		results = append(results, result)
		allCloseness = append(allCloseness, closeness...)
		allErrors = append(allErrors, errs...)
	}

	scenario, err := scoreScenario(in.Supplemental, in.Choices)
	if err != nil {
		return nil, err
	}
	allCloseness = append(allCloseness, scenario.Closeness)
	allErrors = append(allErrors, scenario.Error)

	base := Mean(allCloseness)

	role, err := resolveBoost(in.Supplemental, in.Choices)
	if err != nil {
		return nil, err
	}

	multiplier := 1 + role.Boost
	overall := math.Min(base*multiplier, 1.0)
	if overall < 0 {
		overall = 0
	}

	return &Breakdown{
		Questions:           results,
		Scenario:            *scenario,
		Role:                *role,
		BaseCloseness:       base,
		MAE:                 Mean(allErrors),
		BoostMultiplier:     multiplier,
		OverallCloseness:    overall,
		OverallClosenessPct: Percent(overall),
		Band:                BandFor(overall),
	}, nil
}

func scoreQuestion(q models.Question, catalog map[string]models.Image, responses map[string]int) (models.QuestionResult, []float64, []float64) {
	var closeness, errs []float64
	images := make([]models.ImageResult, 0, len(q.Images))

	for _, img := range q.Images {
		selected, answered := responses[img.ImageID]
		actual, known := catalog[img.ImageID]

		if !answered || !known {
			r := models.ImageResult{ImageID: img.ImageID, Excluded: true}
			if answered {
				r.SelectedScore = intPtr(selected)
			}
			if known {
				r.ActualScore = intPtr(actual.ActualScore)
			}
			images = append(images, r)
			continue
		}

		e, c := ImageCloseness(selected, actual.ActualScore)
		images = append(images, models.ImageResult{
			ImageID:       img.ImageID,
			SelectedScore: intPtr(selected),
			ActualScore:   intPtr(actual.ActualScore),
			Error:         floatPtr(e),
			Closeness:     floatPtr(c),
		})
		closeness = append(closeness, c)
		errs = append(errs, e)
	}

	result := models.QuestionResult{
		QuestionNumber: q.QuestionNumber,
		QuestionType:   q.QuestionType,
		Images:         images,
	}
	if len(closeness) > 0 {
		result.Closeness = floatPtr(Mean(closeness))
		result.MAE = floatPtr(Mean(errs))
	}
	return result, closeness, errs
}

func scoreScenario(supplemental map[int]models.SupplementalQuestion, choices map[int]string) (*models.ScenarioSummary, error) {
	doc, ok := supplemental[SelectionQuestionNumber]
	if !ok {
		return nil, &QuestionError{QuestionNumber: SelectionQuestionNumber, Err: ErrSupplementalMetadataMissing}
	}
	selection, ok := doc.AsSelection()
	if !ok {
		return nil, &QuestionError{QuestionNumber: SelectionQuestionNumber, Err: ErrSupplementalMetadataMissing}
	}
	correct, ok := selection.Option(selection.CorrectOptionID)
	if !ok {
		return nil, &QuestionError{QuestionNumber: SelectionQuestionNumber, Err: ErrSupplementalMetadataMissing}
	}

	chosenID := choices[SelectionQuestionNumber]
	chosen, ok := selection.Option(chosenID)
	if !ok {
		return nil, &QuestionError{QuestionNumber: SelectionQuestionNumber, Err: ErrInvalidOption}
	}

	e, c := ImageCloseness(chosen.Value, correct.Value)
	return &models.ScenarioSummary{
		QuestionNumber: SelectionQuestionNumber,
		SelectedOption: chosen.OptionID,
		SelectedLabel:  chosen.Label,
		SelectedValue:  chosen.Value,
		CorrectValue:   correct.Value,
		Error:          e,
		Closeness:      c,
	}, nil
}

func resolveBoost(supplemental map[int]models.SupplementalQuestion, choices map[int]string) (*models.RoleSummary, error) {
	doc, ok := supplemental[BoostQuestionNumber]
	if !ok {
		return nil, &QuestionError{QuestionNumber: BoostQuestionNumber, Err: ErrSupplementalMetadataMissing}
	}
	boost, ok := doc.AsBoost()
	if !ok {
		return nil, &QuestionError{QuestionNumber: BoostQuestionNumber, Err: ErrSupplementalMetadataMissing}
	}

	chosen, ok := boost.Option(choices[BoostQuestionNumber])
	if !ok {
		return nil, &QuestionError{QuestionNumber: BoostQuestionNumber, Err: ErrInvalidOption}
	}

	return &models.RoleSummary{
		QuestionNumber: BoostQuestionNumber,
		SelectedOption: chosen.OptionID,
		SelectedLabel:  chosen.Label,
		Boost:          chosen.Boost,
	}, nil
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
