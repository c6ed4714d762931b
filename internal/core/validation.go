package core

// validation.go enforces the per-category size policy.
//
// Validation happens after classification. Unknown files never get here:
// the pipeline rejects them with UnsupportedTypeError first, since there is
// no threshold to compare against.

import "fmt"

// Validate checks file against the policy threshold for category.
// Returns nil when the file fits, or a *SizeExceededError carrying the limit.
// A size equal to the limit is accepted.
func Validate(file FileHandle, category Category, policy SizePolicy) error {
	limit, ok := policy.Limit(category)
	if !ok {
		return &UnsupportedTypeError{Filename: file.Name, MediaType: file.MediaType}
	}
	if file.Size > limit {
		return &SizeExceededError{Category: category, Limit: limit, Size: file.Size}
	}
	return nil
}

// Validate checks that every threshold is positive.
func (p SizePolicy) Validate() error {
	for _, c := range []Category{CategoryImage, CategoryPDF, CategoryDocument} {
		limit, _ := p.Limit(c)
		if limit <= 0 {
			return fmt.Errorf("size limit for %s must be positive, got %d", c, limit)
		}
	}
	return nil
}
