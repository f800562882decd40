package gallery

import (
	"fmt"

	"s3-gallery/internal/domain"
)

// UploadError reports a failed write of a selected file.
type UploadError struct {
	Key domain.ObjectKey
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

type LoadStage string

const (
	StageList LoadStage = "list"
	StageSign LoadStage = "sign"
)

// LoadError reports a failed gallery reload. Stage tells whether the listing
// or one of the signing calls failed.
type LoadError struct {
	Stage LoadStage
	// Key is the object whose signing failed; empty for StageList.
	Key domain.ObjectKey
	Err error
}

func (e *LoadError) Error() string {
	if e.Stage == StageSign {
		return fmt.Sprintf("load gallery: sign %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("load gallery: list objects: %v", e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
