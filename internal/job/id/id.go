// Package id provides unique identifier generation for jobs and outputs.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Generate creates a new unique job ID.
// Format: job-<uuid>
// Example: job-9b2f6c1e-3d4a-4f7b-8e21-5a6c7d8e9f01
func Generate() string {
	return "job-" + uuid.NewString()
}

// Short returns eight random hex characters, used to keep output file
// names unique without making them unwieldy.
func Short() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
