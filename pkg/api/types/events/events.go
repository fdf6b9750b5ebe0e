package events

import (
	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
)

// Event payloads sent to lifecycle webhooks.

type SubnetCreated struct {
	SubnetId uint32 `json:"subnetId"`
	Owner    string `json:"owner"`
	TaskType string `json:"taskType"`
}

func ComposeCreated(r domain.SubnetRecord) SubnetCreated {
	return SubnetCreated{
		SubnetId: r.ID,
		Owner:    string(r.Owner),
		TaskType: r.TaskType.String(),
	}
}

type SubnetUpdated struct {
	SubnetId uint32 `json:"subnetId"`
	Owner    string `json:"owner"`
}

type SubnetRetired struct {
	SubnetId uint32 `json:"subnetId"`
	Owner    string `json:"owner"`
}
