package models

import "github.com/vit0-9/hostinfo/pkg/utils"

// ResolveResponse is the output of a host resolution.
type ResolveResponse struct {
	Host    string             `json:"host"`
	Records []utils.HostRecord `json:"records"`
}
