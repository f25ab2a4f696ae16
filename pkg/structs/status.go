package structs

import (
	"strings"
)

type Status string

const (
	// in progress states
	QUEUED  Status = "QUEUED"
	RUNNING Status = "RUNNING"

	// end states
	SUCCEEDED Status = "SUCCEEDED"
	FAILED    Status = "FAILED"
	CANCELED  Status = "CANCELED"
)

// AllStatuses in lifecycle order.
var AllStatuses = []Status{QUEUED, RUNNING, SUCCEEDED, FAILED, CANCELED}

func IsFinalStatus(status Status) bool {
	switch status {
	case SUCCEEDED, FAILED, CANCELED:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a job may move from -> to.
//
//	QUEUED  -> RUNNING | CANCELED
//	RUNNING -> SUCCEEDED | FAILED | QUEUED (retry) | CANCELED
//
// End states are sticky.
func CanTransition(from, to Status) bool {
	switch from {
	case QUEUED:
		return to == RUNNING || to == CANCELED
	case RUNNING:
		return to == SUCCEEDED || to == FAILED || to == QUEUED || to == CANCELED
	default:
		return false
	}
}

func ToStatus(s string) Status {
	switch strings.ToUpper(s) {
	case "QUEUED":
		return QUEUED
	case "RUNNING":
		return RUNNING
	case "SUCCEEDED":
		return SUCCEEDED
	case "FAILED":
		return FAILED
	case "CANCELED", "CANCELLED":
		return CANCELED
	default:
		return ""
	}
}
