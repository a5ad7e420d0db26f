package entity

import "github.com/tomaszkw/docmeter/constants"

// FileDescriptor identifies one candidate file in an ingestion attempt.
type FileDescriptor struct {
	Name   string               `json:"name"`
	Size   int64                `json:"size"`
	Format constants.FileFormat `json:"format"`
}

// PageCountResult is the per-file metering outcome. A counting failure is
// recorded in Err; the file stays in the breakdown either way.
type PageCountResult struct {
	File  FileDescriptor `json:"file"`
	Pages int            `json:"pages"`
	Err   string         `json:"error,omitempty"`
}

// BatchCount aggregates a metering run over a set of files.
type BatchCount struct {
	Total    int               `json:"total"`
	PerFile  []PageCountResult `json:"per_file"`
	Warnings []string          `json:"warnings,omitempty"`
}
