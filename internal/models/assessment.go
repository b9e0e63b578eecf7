// assessment.go
package models

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// QuestionType is the category shared by a question and its images.
type QuestionType string

const (
	QuestionTypeHomestyle QuestionType = "homestyle"
	QuestionTypeProduct   QuestionType = "product"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	return t == QuestionTypeHomestyle || t == QuestionTypeProduct
}

// Supplemental question kinds.
const (
	KindSelection = "selection"
	KindBoost     = "boost"
)

// Image is a single rated picture. ActualScore is the answer key and never
// leaves the server.
type Image struct {
	ImageID        string       `json:"imageId" bson:"imageId" yaml:"imageId"`
	Src            string       `json:"src" bson:"src" yaml:"src"`
	ActualScore    int          `json:"actualScore" bson:"actualScore" yaml:"actualScore"`
	ImageType      QuestionType `json:"imageType" bson:"imageType" yaml:"imageType"`
	DisplayLabel   *string      `json:"displayLabel" bson:"displayLabel" yaml:"displayLabel,omitempty"`
	Filename       string       `json:"filename,omitempty" bson:"filename,omitempty" yaml:"filename,omitempty"`
	QuestionNumber int          `json:"questionNumber,omitempty" bson:"questionNumber,omitempty" yaml:"-"`
}

// Question groups three images rated together.
type Question struct {
	QuestionNumber int          `json:"questionNumber" bson:"questionNumber" yaml:"questionNumber"`
	QuestionType   QuestionType `json:"questionType" bson:"questionType" yaml:"questionType"`
	Images         []Image      `json:"images" bson:"images" yaml:"images"`
}

// SupplementalOption is the stored shape of an option on either supplemental
// question kind. Selection options use Value, boost options use Boost.
type SupplementalOption struct {
	OptionID string  `json:"optionId" bson:"optionId" yaml:"optionId"`
	Label    string  `json:"label" bson:"label" yaml:"label"`
	Value    int     `json:"value,omitempty" bson:"value,omitempty" yaml:"value,omitempty"`
	Boost    float64 `json:"boost,omitempty" bson:"boost,omitempty" yaml:"boost,omitempty"`
}

// SupplementalQuestion is a stored selection or boost question, discriminated by Kind.
type SupplementalQuestion struct {
	QuestionNumber  int                  `json:"questionNumber" bson:"questionNumber" yaml:"questionNumber"`
	Kind            string               `json:"kind" bson:"kind" yaml:"kind"`
	Prompt          string               `json:"prompt" bson:"prompt" yaml:"prompt"`
	CorrectOptionID string               `json:"correctOptionId,omitempty" bson:"correctOptionId,omitempty" yaml:"correctOptionId,omitempty"`
	Options         []SupplementalOption `json:"options" bson:"options" yaml:"options"`
}

// SelectionOption is an option of the scenario question.
type SelectionOption struct {
	OptionID string `json:"optionId"`
	Label    string `json:"label"`
	Value    int    `json:"value"`
}

// SelectionQuestion is the scenario question (#9).
type SelectionQuestion struct {
	QuestionNumber  int
	Prompt          string
	CorrectOptionID string
	Options         []SelectionOption
}

// Option returns the option with the given id.
func (q *SelectionQuestion) Option(id string) (SelectionOption, bool) {
	for _, o := range q.Options {
		if o.OptionID == id {
			return o, true
		}
	}
	return SelectionOption{}, false
}

// BoostOption is an option of the role-preference question.
type BoostOption struct {
	OptionID string  `json:"optionId"`
	Label    string  `json:"label"`
	Boost    float64 `json:"boost"`
}

// BoostQuestion is the role-preference question (#10).
type BoostQuestion struct {
	QuestionNumber int
	Prompt         string
	Options        []BoostOption
}

// Option returns the option with the given id.
func (q *BoostQuestion) Option(id string) (BoostOption, bool) {
	for _, o := range q.Options {
		if o.OptionID == id {
			return o, true
		}
	}
	return BoostOption{}, false
}

// AsSelection converts the stored document when it is a selection question.
func (s SupplementalQuestion) AsSelection() (*SelectionQuestion, bool) {
	if s.Kind != KindSelection {
		return nil, false
	}
	q := &SelectionQuestion{
		QuestionNumber:  s.QuestionNumber,
		Prompt:          s.Prompt,
		CorrectOptionID: s.CorrectOptionID,
		Options:         make([]SelectionOption, 0, len(s.Options)),
	}
	for _, o := range s.Options {
		q.Options = append(q.Options, SelectionOption{OptionID: o.OptionID, Label: o.Label, Value: o.Value})
	}
	return q, true
}

// AsBoost converts the stored document when it is a boost question.
func (s SupplementalQuestion) AsBoost() (*BoostQuestion, bool) {
	if s.Kind != KindBoost {
		return nil, false
	}
	q := &BoostQuestion{
		QuestionNumber: s.QuestionNumber,
		Prompt:         s.Prompt,
		Options:        make([]BoostOption, 0, len(s.Options)),
	}
	for _, o := range s.Options {
		q.Options = append(q.Options, BoostOption{OptionID: o.OptionID, Label: o.Label, Boost: o.Boost})
	}
	return q, true
}

// QuestionBank holds everything the seed command writes.
type QuestionBank struct {
	Questions    []Question             `yaml:"questions"`
	Supplemental []SupplementalQuestion `yaml:"supplemental"`
}

// Images flattens the bank into catalog entries tagged with their question number.
func (b *QuestionBank) Images() []Image {
	var out []Image
	for _, q := range b.Questions {
		for _, img := range q.Images {
			img.QuestionNumber = q.QuestionNumber
			out = append(out, img)
		}
	}
	return out
}

// Validate checks the invariants the scorer relies on.
func (b *QuestionBank) Validate() error {
	seenQuestions := make(map[int]bool)
	seenImages := make(map[string]bool)
	for _, q := range b.Questions {
		if q.QuestionNumber < 1 {
			return fmt.Errorf("question number must be positive, got %d", q.QuestionNumber)
		}
		if seenQuestions[q.QuestionNumber] {
			return fmt.Errorf("duplicate question number %d", q.QuestionNumber)
		}
		seenQuestions[q.QuestionNumber] = true
		if !q.QuestionType.Valid() {
			return fmt.Errorf("question %d: unknown question type %q", q.QuestionNumber, q.QuestionType)
		}
		if len(q.Images) == 0 {
			return fmt.Errorf("question %d has no images", q.QuestionNumber)
		}
		for _, img := range q.Images {
			if img.ImageID == "" {
				return fmt.Errorf("question %d: image without id", q.QuestionNumber)
			}
			if seenImages[img.ImageID] {
				return fmt.Errorf("duplicate image id %q", img.ImageID)
			}
			seenImages[img.ImageID] = true
			if img.ActualScore < 0 || img.ActualScore > 2 {
				return fmt.Errorf("image %q: actual score %d out of range", img.ImageID, img.ActualScore)
			}
		}
	}

	seenSupplemental := make(map[int]bool)
	for _, s := range b.Supplemental {
		if seenSupplemental[s.QuestionNumber] {
			return fmt.Errorf("duplicate supplemental question %d", s.QuestionNumber)
		}
		seenSupplemental[s.QuestionNumber] = true
		if s.Kind != KindSelection && s.Kind != KindBoost {
			return fmt.Errorf("supplemental question %d: unknown kind %q", s.QuestionNumber, s.Kind)
		}
		if len(s.Options) == 0 {
			return fmt.Errorf("supplemental question %d has no options", s.QuestionNumber)
		}
		ids := make(map[string]bool)
		for _, o := range s.Options {
			if ids[o.OptionID] {
				return fmt.Errorf("supplemental question %d: duplicate option %q", s.QuestionNumber, o.OptionID)
			}
			ids[o.OptionID] = true
		}
		if s.Kind == KindSelection && !ids[s.CorrectOptionID] {
			return fmt.Errorf("supplemental question %d: correct option %q not among options", s.QuestionNumber, s.CorrectOptionID)
		}
	}
	return nil
}

// Sort orders questions and supplemental documents by question number.
func (b *QuestionBank) Sort() {
	sort.SliceStable(b.Questions, func(i, j int) bool {
		return b.Questions[i].QuestionNumber < b.Questions[j].QuestionNumber
	})
	sort.SliceStable(b.Supplemental, func(i, j int) bool {
		return b.Supplemental[i].QuestionNumber < b.Supplemental[j].QuestionNumber
	})
}

// LoadQuestionBank reads and parses a question bank YAML file.
func LoadQuestionBank(path string) (*QuestionBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank file: %w", err)
	}

	var bank QuestionBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("failed to unmarshal question bank YAML: %w", err)
	}
	bank.Sort()

	return &bank, nil
}
