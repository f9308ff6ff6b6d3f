package domain

import "errors"

var (
	// ErrProductNotFound is returned when no persistent product matches a lookup
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidListing is returned when a scraped listing is missing name, brand, or price
	ErrInvalidListing = errors.New("listing missing required fields")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrStorageFailure is returned when the persistence layer fails
	ErrStorageFailure = errors.New("storage operation failed")

	// ErrDispatchFailure is returned when a notification job cannot be enqueued
	ErrDispatchFailure = errors.New("notification dispatch failed")

	// ErrRunValidation is returned when a run's unified catalog fails the output gate
	ErrRunValidation = errors.New("run output validation failed")
)
