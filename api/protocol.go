package api

import "github.com/bytedance/sonic"

const putClientMaxSize = 64 * 1024 // 64 KiB

const greeting = "SHIPTIVITY API. Read documentation to see API docs"

// /PUT /api/v1/clients/:id request body
type updateClientRequest struct {
	Status   *string                `json:"status"`
	Priority sonic.NoCopyRawMessage `json:"priority"`
}

type messageResponse struct {
	Message     string `json:"message"`
	LongMessage string `json:"long_message,omitempty"`
}
