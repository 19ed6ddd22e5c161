package portal

import (
	"encoding/json"
	"fmt"
)

type deviceListResponse struct {
	DeviceGroupViewModels []deviceGroup `json:"deviceGroupViewModels"`
}

type deviceGroup struct {
	Devices []device `json:"devices"`
}

type device struct {
	Model        string  `json:"model"`
	SerialNumber string  `json:"serialNumber"`
	Service      service `json:"service"`
}

type service struct {
	CurrentUsage currentUsage `json:"currentUsage"`
	CurrentPlan  currentPlan  `json:"currentPlan"`
}

// Page counts stay json.Number so reports echo the payload's digits.
type currentUsage struct {
	UsageCycleStartDate string      `json:"usageCycleStartDate"`
	UsageCycleEndDate   string      `json:"usageCycleEndDate"`
	GivenRolloverPages  json.Number `json:"givenRolloverPages"`
	PrintedTotalPages   json.Number `json:"printedTotalPages"`
}

type currentPlan struct {
	PlanPages json.Number `json:"planPages"`
}

// RemoteError is a device list response that cannot be recovered from.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("device list returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("device list returned status %d: %s", e.StatusCode, e.Body)
}
