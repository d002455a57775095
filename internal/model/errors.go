package model

import "github.com/sentinel-governance/sentinel/internal/sentinelerr"

func errRequiredField(field string) error {
	return &sentinelerr.InvalidInputError{Field: field, Reason: "required"}
}
