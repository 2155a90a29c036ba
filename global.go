package bonito

import (
	"fmt"
)

// Application global variables
var (
	srvStats               = NewStats()
	srvMetrics             *Metrics
	errorResponseHandler   ResponseHandler
	successResponseHandler ResponseHandler
)

// Hook command output
var (
	// OutputHookStdout merges stdout of hook command to bonito's stdout
	OutputHookStdout bool
	// OutputHookStderr merges stderr of hook command to bonito's stderr
	OutputHookStderr bool
)

// InitErrorResponseHandler initialize error response handler.
func InitErrorResponseHandler(erh ResponseHandler) error {
	if erh != nil {
		errorResponseHandler = erh
		return nil
	}
	return fmt.Errorf("Invalid response handler: %v", erh)
}

// InitSuccessResponseHandler initialize success response handler.
func InitSuccessResponseHandler(sh ResponseHandler) error {
	if sh != nil {
		successResponseHandler = sh
		return nil
	}
	return fmt.Errorf("Invalid response handler: %v", sh)
}
