package models

// OperationResult is the uniform outcome envelope returned by the engine,
// by each field filler, and over every transport.
type OperationResult struct {
	Success bool   `json:"success" yaml:"success"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

func Succeeded(message string) OperationResult {
	return OperationResult{Success: true, Message: message}
}

func Failed(err string) OperationResult {
	return OperationResult{Success: false, Error: err}
}
