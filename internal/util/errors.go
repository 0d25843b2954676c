package util

import "errors"

var (
	ErrAssessmentNotFound   = errors.New("assessment not found")
	ErrDistributionNotFound = errors.New("distribution not found")
	ErrProfileNotFound      = errors.New("teacher profile not found")
	ErrUploadNotFound       = errors.New("rubric upload not found")
	ErrInvalidTestType      = errors.New("testType must be PRE or POST")
	ErrIncompleteCohort     = errors.New("school and grade are required")
	ErrEmptyBatch           = errors.New("batch contains no students")
	ErrBatchTooLarge        = errors.New("batch is too large")
	ErrInvalidFileType      = errors.New("only image uploads are accepted")
	ErrFileTooLarge         = errors.New("file is too large")

	// ErrDistributionConflict means the cohort distribution kept changing underneath
	// the update until the retry budget ran out. Callers may resubmit.
	ErrDistributionConflict = errors.New("cohort distribution update conflict")
)
