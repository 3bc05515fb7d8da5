package domain

import "errors"

var (
	ErrOfferNotFound  = errors.New("offer not found")
	ErrRangeNotFound  = errors.New("range not found")
	ErrDraftNotFound  = errors.New("wizard draft not found")
	ErrDuplicateName  = errors.New("an offer with this name already exists")
	ErrRangeInUse     = errors.New("range is referenced by an offer")
	ErrRangeNameTaken = errors.New("a range with this name already exists")
)
