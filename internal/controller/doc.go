// Package controller applies validated, version-guarded status transitions
// to job records and exposes the legal next states for a job.
package controller
