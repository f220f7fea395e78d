// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eval

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/AleutianAI/mlsearch/services/search/workspace"
)

// ValidateSubmission checks the submission header against the sample.
//
// Description:
//
//	The submission must exist. When the workspace has no sample submission
//	there is nothing to compare against and the check passes. Otherwise the
//	header rows must be identical in content and order. Rows are not
//	inspected.
//
// Outputs:
//
//	error - ErrSubmissionMissing, *SchemaMismatchError, or an I/O error
func ValidateSubmission(ws *workspace.Workspace) error {
	if ws == nil {
		return ErrNilWorkspace
	}
	actual, err := readHeader(ws.SubmissionPath())
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrSubmissionMissing, ws.SubmissionPath())
	}
	if err != nil {
		return fmt.Errorf("read submission header: %w", err)
	}

	expected, err := readHeader(ws.SampleSubmissionPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read sample submission header: %w", err)
	}

	if !slices.Equal(expected, actual) {
		return &SchemaMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}

// ValidateSubmission is a method form of the package function.
func (e *Evaluator) ValidateSubmission(ws *workspace.Workspace) error {
	return ValidateSubmission(ws)
}

// readHeader returns the first CSV record of a file, trimmed of a BOM and
// surrounding whitespace. An empty file has an empty header.
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	record, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []string{}, nil
		}
		return nil, err
	}
	for i, field := range record {
		if i == 0 {
			field = strings.TrimPrefix(field, "\ufeff")
		}
		record[i] = strings.TrimSpace(field)
	}
	return record, nil
}
