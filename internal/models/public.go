package models

// PublicImage is an image as served to applicants, without its answer key.
type PublicImage struct {
	ImageID      string       `json:"imageId"`
	Src          string       `json:"src"`
	ImageType    QuestionType `json:"imageType"`
	DisplayLabel *string      `json:"displayLabel"`
}

// PublicQuestion is a question as served to applicants.
type PublicQuestion struct {
	QuestionNumber int           `json:"questionNumber"`
	QuestionType   QuestionType  `json:"questionType"`
	Images         []PublicImage `json:"images"`
}

// PublicSupplemental is a selection or boost question as served to
// applicants. Options holds []SelectionOption or []BoostOption.
type PublicSupplemental struct {
	QuestionNumber int    `json:"questionNumber"`
	Kind           string `json:"kind"`
	Prompt         string `json:"prompt"`
	Options        any    `json:"options"`
}

// ToPublic strips the answer key from a question.
func (q Question) ToPublic() PublicQuestion {
	images := make([]PublicImage, 0, len(q.Images))
	for _, img := range q.Images {
		images = append(images, PublicImage{
			ImageID:      img.ImageID,
			Src:          img.Src,
			ImageType:    img.ImageType,
			DisplayLabel: img.DisplayLabel,
		})
	}
	return PublicQuestion{
		QuestionNumber: q.QuestionNumber,
		QuestionType:   q.QuestionType,
		Images:         images,
	}
}

// ToPublic projects a supplemental document. The selection question's
// correctOptionId is dropped. Unknown kinds report false.
func (s SupplementalQuestion) ToPublic() (PublicSupplemental, bool) {
	out := PublicSupplemental{QuestionNumber: s.QuestionNumber, Kind: s.Kind, Prompt: s.Prompt}
	if sel, ok := s.AsSelection(); ok {
		out.Options = sel.Options
		return out, true
	}
	if boost, ok := s.AsBoost(); ok {
		out.Options = boost.Options
		return out, true
	}
	return PublicSupplemental{}, false
}
