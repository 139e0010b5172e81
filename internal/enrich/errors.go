package enrich

import "fmt"

// ConfigurationError reports a missing or invalid setting, such as an absent
// API key. It is fatal: nothing is sent to the service.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

// ImportError reports that an input file yielded no usable company names.
type ImportError struct {
	Msg string
}

func (e *ImportError) Error() string {
	return e.Msg
}

// ServiceError wraps a transport or API failure for one company.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	if e == nil || e.Err == nil {
		return "service error"
	}
	return fmt.Sprintf("service error: %s", e.Err.Error())
}

func (e *ServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// FormatError reports a service answer that could not be read as a Record.
type FormatError struct {
	Msg string
	Err error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
