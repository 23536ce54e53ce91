package db

import "errors"

var errDBUnavailable = errors.New("db unavailable")

func stringPtrIfNotEmpty(in string) *string {
	if in == "" {
		return nil
	}
	return &in
}

func int64PtrIfNotZero(in uint64) *int64 {
	if in == 0 {
		return nil
	}
	out := int64(in)
	return &out
}
